package page

// ToastKind classifies user feedback.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

// Toast is a short user-visible notification.
type Toast struct {
	Kind    ToastKind `json:"kind"`
	Message string    `json:"message"`
	Section string    `json:"section,omitempty"`
}

const (
	msgPermission = "You do not have permission to edit this site"
	msgSaved      = "Changes saved"
	msgSaveFailed = "Could not save changes, please try again"
	msgCreated    = "Site content initialised"
)
