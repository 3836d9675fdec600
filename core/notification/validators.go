package notification

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

var (
	targetTag  = "notiftarget"
	targetText = "one of target_role or target_user_id is required"
)

// RegisterValidators hooks the notification-specific validations onto the shared validator.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(notificationStructValidation, NewNotification{})
	core.RegisterCustomTranslation(validate, translator, targetTag, targetText)
}

// notificationStructValidation checks that a target is provided.
func notificationStructValidation(sl validator.StructLevel) {
	if nn, ok := sl.Current().Interface().(NewNotification); ok {
		if nn.TargetRole == "" && nn.TargetUserID == "" {
			sl.ReportError(nn.TargetRole, "target_role", "TargetRole", targetTag, "")
			sl.ReportError(nn.TargetUserID, "target_user_id", "TargetUserID", targetTag, "")
		}
	}
}
