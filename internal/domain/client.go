package domain

import "time"

// Client is the customer a quote is prepared for. Email receives the review link.
type Client struct {
	ID        int64     `json:"id,string"`
	Name      string    `gorm:"index" json:"name"`
	Company   string    `json:"company"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	Remark    string    `json:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Client) TableName() string {
	return "est_client"
}
