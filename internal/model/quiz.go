package model

// CreateQuizRequest is the payload for starting a quiz over a set of modules.
type CreateQuizRequest struct {
	ModuleIDs []string `json:"module_ids" binding:"required,min=1,max=50,dive,required,max=64"`
	Count     int      `json:"count" binding:"required,min=1,max=500"`
	AutoNext  bool     `json:"auto_next"`
}

// SelectAnswerRequest records a selection for one item.
type SelectAnswerRequest struct {
	ItemIndex *int   `json:"item_index" binding:"required"`
	OptionID  string `json:"option_id" binding:"required,max=64"`
}

// GoToRequest jumps to an item.
type GoToRequest struct {
	Index *int `json:"index" binding:"required"`
}

// AutoNextRequest toggles auto-advance.
type AutoNextRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
