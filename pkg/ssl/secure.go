package ssl

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

type Options struct {
	// ForceTLS 为 true 时 http 请求重定向到 SSLHost
	ForceTLS    bool
	SSLHost     string
	Development bool
}

// SecureHandler 安全响应头，按需强制 https
func SecureHandler(opts Options) gin.HandlerFunc {
	mw := secure.New(secure.Options{
		SSLRedirect:          opts.ForceTLS,
		SSLHost:              opts.SSLHost,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
		STSSeconds:           stsSeconds(opts.ForceTLS),
		STSIncludeSubdomains: opts.ForceTLS,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		ReferrerPolicy:       "strict-origin-when-cross-origin",
		IsDevelopment:        opts.Development,
	})
	return func(c *gin.Context) {
		// Process 已经写入重定向响应
		if err := mw.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Next()
	}
}

func stsSeconds(forceTLS bool) int64 {
	if forceTLS {
		return 31536000
	}
	return 0
}
