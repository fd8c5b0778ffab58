package bot

type MemberRole string

const (
	RoleUnknown       MemberRole = ""
	RoleCreator       MemberRole = "creator"
	RoleAdministrator MemberRole = "administrator"
	RoleMember        MemberRole = "member"
	RoleRestricted    MemberRole = "restricted"
	RoleLeft          MemberRole = "left"
	RoleKicked        MemberRole = "kicked"
)

func (r MemberRole) IsAdmin() bool {
	return r == RoleCreator || r == RoleAdministrator
}

type Permissions struct {
	CanSendMessages       bool
	CanSendMedia          bool
	CanSendPolls          bool
	CanSendOtherMessages  bool
	CanAddWebPagePreviews bool
	CanInviteUsers        bool
}

var (
	MutedPermissions = Permissions{}
	FullPermissions  = Permissions{
		CanSendMessages:       true,
		CanSendMedia:          true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanInviteUsers:        true,
	}
)
