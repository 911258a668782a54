package widget

// Field identifies a focusable control on the calculator page.
type Field string

const (
	FieldNone          Field = ""
	FieldProductName   Field = "product_name"
	FieldCategory      Field = "category"
	FieldFarmgatePrice Field = "farmgate_price"
	FieldMarketPrice   Field = "market_price"
	FieldConfirmDelete Field = "confirm_delete"
)

// Row is one rendered history entry. DeleteURL is the opaque per-row
// endpoint the server attached to the row's delete control.
type Row struct {
	ID             string
	Label          string
	DeleteURL      string
	DeleteDisabled bool
}

// Page is the in-memory model of the calculator surface. The controller is
// its only mutator; every update fully replaces the affected display state.
type Page struct {
	FarmgateInput string
	MarketInput   string
	ProductName   string
	Category      string

	FairPriceText string
	HasValue      bool
	BadgeVisible  bool
	BadgeText     string

	Banner          string
	Focused         Field
	SaveDisabled    bool
	SaveLabel       string
	ReloadRequested bool

	ModalOpen bool
	Rows      []Row
}

// NewPage returns a page in its initial idle state.
func NewPage(rows []Row) *Page {
	return &Page{
		FairPriceText: "0.00",
		SaveLabel:     saveLabelIdle,
		Rows:          rows,
	}
}

// FindRow returns the row with the given id, or nil.
func (p *Page) FindRow(id string) *Row {
	for i := range p.Rows {
		if p.Rows[i].ID == id {
			return &p.Rows[i]
		}
	}
	return nil
}

func (p *Page) removeRow(id string) bool {
	for i := range p.Rows {
		if p.Rows[i].ID == id {
			p.Rows = append(p.Rows[:i], p.Rows[i+1:]...)
			return true
		}
	}
	return false
}
