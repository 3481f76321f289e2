package policy

type Decision string

const (
	DecisionAccept              Decision = "ACCEPT"
	DecisionBlacklisted         Decision = "BLACKLISTED"
	DecisionRejectDuplicate     Decision = "REJECT_DUPLICATE"
	DecisionRejectVPN           Decision = "REJECT_VPN"
	DecisionRejectUnknownMember Decision = "REJECT_UNKNOWN_MEMBER"
	DecisionRejectIPBanned      Decision = "REJECT_IP_BANNED"
)

func (d Decision) Accepted() bool {
	return d == DecisionAccept
}

type Submission struct {
	GuildID     string
	UserID      string
	HWID        string
	IP          string
	VPNScore    float64
	Username    string
	DisplayName string
}

type Outcome struct {
	Decision        Decision
	GuildID         string
	UserID          string
	DuplicateOf     string
	Attempts        int
	AutoBlacklisted bool
	VPNScore        float64
	RoleApplied     bool
	Message         string
}

type Alert struct {
	Decision        Decision
	GuildID         string
	UserID          string
	Username        string
	DisplayName     string
	DuplicateOf     string
	Attempts        int
	MaxAttempts     int
	VPNScore        float64
	Country         string
	AutoBlacklisted bool
	InviterID       string
	InviterName     string
	InviteCode      string
}
