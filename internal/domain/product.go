package domain

import "time"

// Category groups catalog products, e.g. "Office furniture"
type Category struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:256" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Category) TableName() string {
	return "est_category"
}

// Product is a movable catalog item. The integer multipliers are per piece.
type Product struct {
	ID          int64     `json:"id,string" gorm:"primaryKey"`
	CategoryID  int64     `json:"category_id,string" gorm:"index"`
	Name        string    `gorm:"index;size:256" json:"name"`
	MinsPiece   int64     `json:"mins_piece"`   // labor minutes per piece
	MultDollies int64     `json:"mult_dollies"` // dollies per piece
	MCart       int64     `json:"m_cart"`       // machine carts per piece
	LCart       int64     `json:"l_cart"`       // library carts per piece
	PCart       int64     `json:"p_cart"`       // panel carts per piece
	SPack       int64     `json:"s_pack"`       // speed packs per piece
	Category    *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "est_product"
}
