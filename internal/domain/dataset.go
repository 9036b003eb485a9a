package domain

// LabelingType controls which label values a dataset accepts.
type LabelingType string

const (
	// LabelingBinary accepts positive and negative only.
	LabelingBinary LabelingType = "binary"
	// LabelingMultiClass accepts positive, neutral and negative.
	LabelingMultiClass LabelingType = "multi_class"
)

// Valid reports whether t is a known labeling type.
func (t LabelingType) Valid() bool {
	return t == LabelingBinary || t == LabelingMultiClass
}

// AllowedLabels returns the label values accepted under t, in display order.
func (t LabelingType) AllowedLabels() []LabelValue {
	if t == LabelingBinary {
		return []LabelValue{LabelPositive, LabelNegative}
	}
	return []LabelValue{LabelPositive, LabelNeutral, LabelNegative}
}

// Allows reports whether v may be submitted under t.
func (t LabelingType) Allows(v LabelValue) bool {
	for _, allowed := range t.AllowedLabels() {
		if allowed == v {
			return true
		}
	}
	return false
}

// Dataset is an uploaded collection of entries that members label.
type Dataset struct {
	Record
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	OwnerID      string       `json:"owner_id"`
	InviteCode   string       `json:"invite_code"`
	TotalEntries int          `json:"total_entries"`
	IsActive     bool         `json:"is_active"`
	LabelingType LabelingType `json:"labeling_type"`
	// HasScores is set when the upload carried a 1-5 score column.
	HasScores bool `json:"has_scores"`
}

// CanManage reports whether the user may edit, export or delete the dataset.
func (d *Dataset) CanManage(userID string, isAdmin bool) bool {
	return isAdmin || d.OwnerID == userID
}

// AcceptsLabelsFrom reports whether the user may submit labels. Owners and
// admins can keep labeling an inactive dataset; everyone else cannot.
func (d *Dataset) AcceptsLabelsFrom(userID string, isAdmin bool) bool {
	return d.IsActive || d.CanManage(userID, isAdmin)
}

// DatasetUpdate carries optional metadata changes. Nil fields are left unchanged.
type DatasetUpdate struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// Empty reports whether the update changes nothing.
func (u DatasetUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.IsActive == nil
}
