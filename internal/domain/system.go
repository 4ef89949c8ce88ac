package domain

import (
	"time"
)

const (
	OprLevelSuper = "super"
	OprLevelOpr   = "opr"
)

// SysConfig runtime setting stored as category/name/value
type SysConfig struct {
	ID        int64     `json:"id,string"`
	Sort      int       `json:"sort"`
	Type      string    `gorm:"index" json:"type"`
	Name      string    `gorm:"index" json:"name"`
	Value     string    `json:"value"`
	Remark    string    `json:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysConfig) TableName() string {
	return "sys_config"
}

// SysOpr is an operator account. Quotes belong to the operator who built them.
type SysOpr struct {
	ID        int64     `json:"id,string"`
	Realname  string    `json:"realname"`
	Mobile    string    `json:"mobile"`
	Email     string    `json:"email"`
	Username  string    `gorm:"uniqueIndex;size:64" json:"username"`
	Password  string    `json:"-"`
	Level     string    `json:"level"`
	Status    string    `json:"status"`
	Remark    string    `json:"remark"`
	LastLogin time.Time `json:"last_login"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysOpr) TableName() string {
	return "sys_opr"
}

// SysOprLog audit entry for operator actions
type SysOprLog struct {
	ID        int64     `json:"id,string"`
	OprName   string    `json:"opr_name"`
	OprIp     string    `json:"opr_ip"`
	OptAction string    `gorm:"index" json:"opt_action"`
	OptDesc   string    `json:"opt_desc"`
	OptTime   time.Time `gorm:"index" json:"opt_time"`
}

// TableName Specify table name
func (SysOprLog) TableName() string {
	return "sys_opr_log"
}
