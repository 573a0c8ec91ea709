package engine

import (
	"github.com/roach88/treesync/internal/model"
)

// validateContext rejects an element context without item or version id.
func validateContext(ec model.ElementContext) error {
	if ec.ItemID.IsEmpty() {
		return invalidArgument("item id is required")
	}
	if ec.VersionID.IsEmpty() {
		return invalidArgument("version id is required")
	}
	return nil
}

func invalidArgument(format string, args ...any) error {
	return model.InvalidOperation(model.CodeInvalidArgument, format, args...)
}

func versionMissing(ec model.ElementContext) error {
	return model.InvalidOperation(model.CodeVersionMissing,
		"item %s version %s does not exist", ec.ItemID, ec.VersionID)
}

func elementMissing(ec model.ElementContext, id model.ID) error {
	return model.InvalidOperation(model.CodeElementMissing,
		"element %s does not exist in item %s version %s", id, ec.ItemID, ec.VersionID)
}

func revisionMissing(ec model.ElementContext) error {
	return model.InvalidOperation(model.CodeRevisionNotFound,
		"revision %s of item %s version %s does not exist", ec.RevisionID, ec.ItemID, ec.VersionID)
}
