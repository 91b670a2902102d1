// Package model defines the panel tables read by the usage API.
package model

// Inbound is a configured listener/protocol profile. Only the fields the API reads are mapped.
type Inbound struct {
	Id     int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Remark string `json:"remark"`
}

func (Inbound) TableName() string { return "inbounds" }

// User is a panel client. Email doubles as the username, ExpiryTime is epoch milliseconds
// with 0 or NULL meaning "never expires".
type User struct {
	Id         int    `json:"id" gorm:"primaryKey;autoIncrement"`
	InboundId  int    `json:"inboundId" gorm:"column:inbound_id;index"`
	UUID       string `json:"uuid" gorm:"column:uuid;uniqueIndex"`
	Email      string `json:"email" gorm:"column:email;uniqueIndex"`
	Enable     bool   `json:"enable" gorm:"column:enable"`
	ExpiryTime *int64 `json:"expiryTime" gorm:"column:expiry_time"`
}

func (User) TableName() string { return "users" }

// ClientTraffic holds the cumulative byte counters of one user.
type ClientTraffic struct {
	Id     int   `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId int   `json:"userId" gorm:"column:user_id;uniqueIndex"`
	Up     int64 `json:"up" gorm:"column:up"`
	Down   int64 `json:"down" gorm:"column:down"`
}

func (ClientTraffic) TableName() string { return "client_traffics" }

// RequiredTables lists the tables the traffic lookup joins.
var RequiredTables = []string{"users", "inbounds", "client_traffics"}
