package rbac

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent      Role = "student"
	RoleTeacher      Role = "teacher"
	RolePaperManager Role = "paper_manager"
	RoleVideoManager Role = "video_manager"
	RoleAdmin        Role = "admin"
)

var allRoles = []Role{RoleStudent, RoleTeacher, RolePaperManager, RoleVideoManager, RoleAdmin}

func Roles() []Role { return append([]Role(nil), allRoles...) }

func (r Role) Valid() bool {
	for _, x := range allRoles {
		if r == x {
			return true
		}
	}
	return false
}

// Staff is every role that is not a student.
func (r Role) Staff() bool { return r.Valid() && r != RoleStudent }

// RolePermissions is the single role -> capability table. Routes declare
// the capability they need; handlers never compare role names.
var RolePermissions = map[Role][]string{
	RoleStudent: {
		"course:view",
		"material:view",
		"paper:view",
		"paper:submit",
		"attempt:view-own",
		"payment:create",
		"payment:view-own",
		"upload:answer-file",
		"upload:profile-image",
		"user:change_password",
	},
	RoleTeacher: {
		"course:*",
		"material:view",
		"tute:*",
		"video:*",
		"paper:view",
		"paper:create",
		"paper:update",
		"paper:delete",
		"attempt:view-all",
		"attempt:grade",
		"upload:*",
		"users:list",
		"user:set_student_type",
		"user:change_password",
		"payment:view-own",
	},
	RolePaperManager: {
		"course:view",
		"material:view",
		"paper:*",
		"attempt:view-all",
		"attempt:grade",
		"upload:paper-file",
		"upload:paper-thumbnail",
		"upload:question-image",
		"upload:option-image",
		"upload:review-file",
		"upload:profile-image",
		"user:change_password",
	},
	RoleVideoManager: {
		"course:view",
		"material:view",
		"paper:view",
		"video:*",
		"upload:video-thumbnail",
		"upload:profile-image",
		"user:change_password",
	},
	RoleAdmin: {
		"*", // everything
	},
}
