package rbac

// Default policy for the training platform. Expand as needed.
var RolePermissions = map[string][]string{
	"learner": {
		"quiz:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"cert:view-own",
		"user:change_password",
	},
	"instructor": {
		"quiz:create",
		"quiz:publish",
		"quiz:view",
		"quiz:view-full",
		"attempt:view-all",
		"cert:view-all",
	},
	"admin": {
		"*", // everything
	},
}
