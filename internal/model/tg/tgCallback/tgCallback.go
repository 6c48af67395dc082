package tgCallback

// Callback buttons uniques, the holding id or batch mode goes to the button data
const (
	ShowFunds    string = "show_funds"
	RefreshFunds string = "refresh_funds"

	EditHolding   string = "edit_holding" // opens the holding card
	EditAmount    string = "edit_amount"
	EditProfit    string = "edit_profit"
	EditNotes     string = "edit_notes"
	DeleteHolding string = "delete_holding"
	ConfirmDelete string = "confirm_delete"

	BatchMode   string = "batch_mode"
	BatchCancel string = "batch_cancel"
)
