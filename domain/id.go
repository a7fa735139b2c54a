package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// ValidateID rejects identifiers that are not 24 character hex ObjectIDs.
// Every backend assigns identifiers in this form.
func ValidateID(id string) error {
	if !primitive.IsValidObjectID(id) {
		return &InvalidArgumentError{Field: "id", Reason: "Invalid event ID format"}
	}
	return nil
}

// NewID allocates a fresh identifier for backends that do not assign one.
func NewID() string {
	return primitive.NewObjectID().Hex()
}
