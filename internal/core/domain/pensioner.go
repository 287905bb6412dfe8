package domain

// ActiveUserStatus is the userStatus value of an enabled pensioner account
const ActiveUserStatus = 1

// PensionerAccount is the downstream account record linked to a verified
// identity number. The pensioner service is consumed as a black box.
type PensionerAccount struct {
	CID           string
	UserStatus    int
	PensionStatus string
}

// Active tells whether the account may log in
func (p *PensionerAccount) Active() bool {
	return p.UserStatus == ActiveUserStatus
}

// LivenessStatus values reported to the liveliness endpoint
const (
	LivenessValid   = "Valid"
	LivenessInvalid = "Invalid"
)
