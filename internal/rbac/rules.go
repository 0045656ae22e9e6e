package rbac

const (
	PermPredictionsView = "predictions:view"
	PermEncoderReload   = "encoder:reload"
	PermEventsView      = "events:view"
)

// Default policy: admins can do everything, analysts can read history.
var RolePermissions = map[string][]string{
	"analyst": {
		PermPredictionsView,
	},
	"admin": {
		"*", // everything
	},
}
