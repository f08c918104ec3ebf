package entity

import "time"

// MultilingualText 语言代码 -> 文本
type MultilingualText map[string]string

// Get 取指定语言，缺失时依次回退 zh、en、任意值
func (m MultilingualText) Get(lang string) string {
	if v, ok := m[lang]; ok && v != "" {
		return v
	}
	for _, l := range []string{"zh", "en"} {
		if v, ok := m[l]; ok && v != "" {
			return v
		}
	}
	for _, v := range m {
		if v != "" {
			return v
		}
	}
	return ""
}

const (
	StatusConcept      = "concept"
	StatusAlpha        = "alpha"
	StatusBeta         = "beta"
	StatusReleased     = "released"
	StatusDiscontinued = "discontinued"
)

var Statuses = []string{StatusConcept, StatusAlpha, StatusBeta, StatusReleased, StatusDiscontinued}

// ValidStatus 校验状态枚举
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

type Description struct {
	Short    MultilingualText `bson:"short" json:"short"`
	Detailed MultilingualText `bson:"detailed,omitempty" json:"detailed,omitempty"`
}

type DevelopmentTeam struct {
	Name        string   `bson:"name" json:"name"`
	Website     string   `bson:"website,omitempty" json:"website,omitempty"`
	Country     string   `bson:"country,omitempty" json:"country,omitempty"`
	FoundedYear int      `bson:"founded_year,omitempty" json:"founded_year,omitempty"`
	Members     []string `bson:"members,omitempty" json:"members,omitempty"`
}

type TechnicalStack struct {
	BaseModel            []string         `bson:"base_model,omitempty" json:"base_model,omitempty"`
	Frameworks           []string         `bson:"frameworks,omitempty" json:"frameworks,omitempty"`
	ProgrammingLanguages []string         `bson:"programming_languages,omitempty" json:"programming_languages,omitempty"`
	Deployment           []string         `bson:"deployment,omitempty" json:"deployment,omitempty"`
	Description          MultilingualText `bson:"description,omitempty" json:"description,omitempty"`
}

// Keywords 全部技术栈标签
func (t TechnicalStack) Keywords() []string {
	out := make([]string, 0, len(t.BaseModel)+len(t.Frameworks)+len(t.ProgrammingLanguages)+len(t.Deployment))
	out = append(out, t.BaseModel...)
	out = append(out, t.Frameworks...)
	out = append(out, t.ProgrammingLanguages...)
	out = append(out, t.Deployment...)
	return out
}

type FundingRound struct {
	Round     string    `bson:"round" json:"round"`
	Amount    float64   `bson:"amount,omitempty" json:"amount,omitempty"`
	Currency  string    `bson:"currency,omitempty" json:"currency,omitempty"`
	Date      time.Time `bson:"date,omitempty" json:"date,omitempty"`
	Investors []string  `bson:"investors,omitempty" json:"investors,omitempty"`
}

type FundingInfo struct {
	TotalRaised float64        `bson:"total_raised,omitempty" json:"total_raised,omitempty"`
	Currency    string         `bson:"currency,omitempty" json:"currency,omitempty"`
	Rounds      []FundingRound `bson:"rounds,omitempty" json:"rounds,omitempty"`
}

type BusinessInfo struct {
	Model       string           `bson:"model,omitempty" json:"model,omitempty"`
	Pricing     MultilingualText `bson:"pricing,omitempty" json:"pricing,omitempty"`
	TargetUsers []string         `bson:"target_users,omitempty" json:"target_users,omitempty"`
	Regions     []string         `bson:"regions,omitempty" json:"regions,omitempty"`
}

type Metrics struct {
	PopularityScore float64 `bson:"popularity_score" json:"popularity_score"`
	Users           int64   `bson:"users,omitempty" json:"users,omitempty"`
	Stars           int64   `bson:"stars,omitempty" json:"stars,omitempty"`
	Views           int64   `bson:"views,omitempty" json:"views,omitempty"`
	Rating          float64 `bson:"rating,omitempty" json:"rating,omitempty"`
}

type TimelineEvent struct {
	Date        time.Time        `bson:"date" json:"date"`
	Event       string           `bson:"event" json:"event"`
	Description MultilingualText `bson:"description,omitempty" json:"description,omitempty"`
}

// CatalogAgent 目录中的 Agent 文档
type CatalogAgent struct {
	ID              string              `bson:"_id" json:"id"`
	Slug            string              `bson:"slug" json:"slug"`
	Name            MultilingualText    `bson:"name" json:"name"`
	Description     Description         `bson:"description" json:"description"`
	Features        map[string][]string `bson:"features,omitempty" json:"features,omitempty"`
	LogoURL         string              `bson:"logo_url,omitempty" json:"logo_url,omitempty"`
	OfficialURL     string              `bson:"official_url,omitempty" json:"official_url,omitempty"`
	DevelopmentTeam DevelopmentTeam     `bson:"development_team" json:"development_team"`
	TechnicalStack  TechnicalStack      `bson:"technical_stack" json:"technical_stack"`
	FundingInfo     *FundingInfo        `bson:"funding_info,omitempty" json:"funding_info,omitempty"`
	BusinessInfo    *BusinessInfo       `bson:"business_info,omitempty" json:"business_info,omitempty"`
	Status          string              `bson:"status" json:"status"`
	Tags            []string            `bson:"tags" json:"tags"`
	RelatedAgents   []string            `bson:"related_agents,omitempty" json:"related_agents,omitempty"`
	Metrics         Metrics             `bson:"metrics" json:"metrics"`
	Timeline        []TimelineEvent     `bson:"timeline,omitempty" json:"timeline,omitempty"`
	IsVerified      bool                `bson:"is_verified" json:"is_verified"`
	CreatedBy       int64               `bson:"created_by" json:"created_by"`
	CreatedAt       time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at" json:"updated_at"`
}

// ChangeOp 目录变更类型
type ChangeOp string

const (
	ChangeUpsert ChangeOp = "upsert"
	ChangeDelete ChangeOp = "delete"
)

// ChangeEvent 目录变更事件
type ChangeEvent struct {
	Op        ChangeOp  `json:"op"`
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NormalizeLanguage 仅支持 zh/en，其余按 zh 处理
func NormalizeLanguage(lang string) string {
	switch lang {
	case "zh", "en":
		return lang
	default:
		return "zh"
	}
}
