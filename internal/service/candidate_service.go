package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"matrimony_match/internal/model"
	"matrimony_match/internal/pkg"
	"matrimony_match/internal/repository/mysql"
)

// CandidateMode 候选列表类型
type CandidateMode string

const (
	ModeNew       CandidateMode = "new"
	ModePreferred CandidateMode = "preferred"
)

// ProfileStore 资料服务的只读接口
type ProfileStore interface {
	FindProfileByUser(ctx context.Context, userID uint64) (*model.Profile, error)
	FindProfilesByUsers(ctx context.Context, userIDs []uint64) ([]model.Profile, error)
	SearchProfiles(ctx context.Context, f model.ProfileFilter, excludeIDs []uint64, page, pageSize int) ([]model.Profile, int64, error)
}

// ErrProfileMissing 资料不存在
var ErrProfileMissing = errors.New("profile missing")

// profileRepoStore 基于 profiles 表的 ProfileStore
type profileRepoStore struct {
	repo *mysql.ProfileRepository
}

func NewProfileStore(db *gorm.DB) ProfileStore {
	return &profileRepoStore{repo: &mysql.ProfileRepository{DB: db}}
}

func (s *profileRepoStore) FindProfileByUser(ctx context.Context, userID uint64) (*model.Profile, error) {
	p, err := s.repo.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileMissing
	}
	if err != nil {
		return nil, fmt.Errorf("find profile %d: %w", userID, err)
	}
	return p, nil
}

func (s *profileRepoStore) FindProfilesByUsers(ctx context.Context, userIDs []uint64) ([]model.Profile, error) {
	list, err := s.repo.FindByUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("find profiles: %w", err)
	}
	return list, nil
}

func (s *profileRepoStore) SearchProfiles(ctx context.Context, f model.ProfileFilter, excludeIDs []uint64, page, pageSize int) ([]model.Profile, int64, error) {
	list, total, err := s.repo.Search(ctx, f, excludeIDs, pkg.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("search profiles: %w", err)
	}
	return list, total, nil
}

// ProfileCard 列表里展示的资料字段
type ProfileCard struct {
	UserID       uint64 `json:"userId"`
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	Age          int    `json:"age"`
	City         string `json:"city"`
	Religion     string `json:"religion"`
	MotherTongue string `json:"motherTongue"`
}

func newProfileCard(p *model.Profile, now time.Time) ProfileCard {
	return ProfileCard{
		UserID:       p.UserID,
		Name:         p.Name,
		Gender:       p.Gender,
		Age:          p.Age(now),
		City:         p.City,
		Religion:     p.Religion,
		MotherTongue: p.MotherTongue,
	}
}

type CandidateService struct {
	profiles  ProfileStore
	quickList *mysql.QuickListRepository
	now       func() time.Time
}

func NewCandidateService(db *gorm.DB, profiles ProfileStore) *CandidateService {
	return &CandidateService{
		profiles:  profiles,
		quickList: &mysql.QuickListRepository{DB: db},
		now:       time.Now,
	}
}

// excludedLists 已经互动过的人不再出现在候选里
var excludedLists = []model.ListKind{
	model.ListShortlisted,
	model.ListBlocked,
	model.ListSent,
	model.ListReceived,
	model.ListAccepted,
	model.ListDeclined,
}

// GetCandidates 异性、活跃、未互动过的资料；preferred 再叠加择偶条件
func (s *CandidateService) GetCandidates(ctx context.Context, userID uint64, mode CandidateMode, page, pageSize int) (*pkg.Page[ProfileCard], error) {
	if userID == 0 {
		return nil, ErrInvalidArgument
	}
	if mode != ModeNew && mode != ModePreferred {
		return nil, ErrInvalidArgument
	}
	page, pageSize = pkg.NormalizePage(page, pageSize)

	me, err := s.profiles.FindProfileByUser(ctx, userID)
	if errors.Is(err, ErrProfileMissing) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	gender := oppositeGender(me.Gender)
	if gender == "" {
		// 性别未知时不推荐任何人
		return pkg.NewPage[ProfileCard](nil, page, pageSize, 0), nil
	}

	exclude, err := s.exclusion(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	f := model.ProfileFilter{Gender: gender}
	if mode == ModePreferred {
		applyPreferences(&f, me.PartnerPreferences, now)
	}

	list, total, err := s.profiles.SearchProfiles(ctx, f, exclude, page, pageSize)
	if err != nil {
		return nil, err
	}
	cards := make([]ProfileCard, 0, len(list))
	for i := range list {
		cards = append(cards, newProfileCard(&list[i], now))
	}
	return pkg.NewPage(cards, page, pageSize, total), nil
}

// exclusion 自己加上六个集合的并集
func (s *CandidateService) exclusion(ctx context.Context, userID uint64) ([]uint64, error) {
	ids, err := s.quickList.Members(ctx, userID, excludedLists)
	if err != nil {
		return nil, fmt.Errorf("load exclusion set: %w", err)
	}
	return append(ids, userID), nil
}

func oppositeGender(g string) string {
	switch g {
	case model.GenderMale:
		return model.GenderFemale
	case model.GenderFemale:
		return model.GenderMale
	}
	return ""
}

// applyPreferences 年龄区间换算为出生日期区间：age >= min 即 dob <= now-min 年，age <= max 即 dob > now-(max+1) 年
func applyPreferences(f *model.ProfileFilter, pref model.PartnerPreferences, now time.Time) {
	if pref.AgeMin > 0 {
		f.BornOnOrBefore = now.AddDate(-pref.AgeMin, 0, 0)
	}
	if pref.AgeMax > 0 {
		f.BornAfter = now.AddDate(-(pref.AgeMax + 1), 0, 0)
	}
	f.Religions = pref.Religions
	f.Cities = pref.Cities
	f.MotherTongues = pref.MotherTongues
}
