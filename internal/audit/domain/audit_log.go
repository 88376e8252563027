package domain

import "time"

// AuditLog is one recorded security or lending decision.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Actions recorded by the auth and order services.
const (
	ActionLoginSuccess  = "login_success"
	ActionLoginFailure  = "login_failure"
	ActionLogout        = "logout"
	ActionSessionRevoke = "session_revoke"
	ActionRevokeAll     = "session_revoke_all"
	ActionRefreshReuse  = "refresh_token_reuse"
	ActionOrderCreate   = "order_create"
	ActionOrderApprove  = "order_approve"
	ActionOrderReject   = "order_reject"
	ActionOrderCancel   = "order_cancel"
	ActionOrderReturn   = "order_return"
)

// Resources.
const (
	ResourceAuthentication = "authentication"
	ResourceSession        = "session"
	ResourceOrder          = "order"
)
