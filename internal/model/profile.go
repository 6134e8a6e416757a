package model

import "time"

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// PartnerPreferences 择偶条件，空列表表示不限
type PartnerPreferences struct {
	AgeMin        int      `json:"age_min"`
	AgeMax        int      `json:"age_max"`
	Religions     []string `json:"religions"`
	Cities        []string `json:"cities"`
	MotherTongues []string `json:"mother_tongues"`
}

// Profile 资料服务维护的用户资料，这里只读
type Profile struct {
	ID                 uint64             `gorm:"primaryKey"`
	UserID             uint64             `gorm:"not null;uniqueIndex"`
	Name               string             `gorm:"size:64;not null"`
	Email              string             `gorm:"size:128"`
	Gender             string             `gorm:"size:16;not null;index:idx_gender_active,priority:1"`
	DateOfBirth        time.Time          `gorm:"not null"`
	City               string             `gorm:"size:64"`
	Religion           string             `gorm:"size:64"`
	MotherTongue       string             `gorm:"size:64"`
	IsActive           bool               `gorm:"not null;index:idx_gender_active,priority:2"`
	PartnerPreferences PartnerPreferences `gorm:"serializer:json;type:json"`
	CreatedAt          time.Time          `gorm:"index"`
	UpdatedAt          time.Time
}

func (Profile) TableName() string {
	return "profiles"
}

// Age 按给定时间计算周岁
func (p *Profile) Age(now time.Time) int {
	dob := p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// ProfileFilter 候选检索条件，零值字段不参与过滤
type ProfileFilter struct {
	Gender         string
	BornAfter      time.Time // date_of_birth > BornAfter
	BornOnOrBefore time.Time // date_of_birth <= BornOnOrBefore
	Religions      []string
	Cities         []string
	MotherTongues  []string
}

// Tables 需要自动建表的模型
func Tables() []any {
	return []any{
		&Interaction{},
		&QuickList{},
		&QuickListEntry{},
		&InteractionOutbox{},
		&Profile{},
	}
}
