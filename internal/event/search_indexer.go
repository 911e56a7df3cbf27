package event

import (
	"context"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/zoek1/web-1/internal/lifecycle"
	"github.com/zoek1/web-1/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SearchSourceBounty 搜索索引中悬赏的来源类型
const SearchSourceBounty = "bounty"

// SearchIndexer 维护当前修订的搜索索引
type SearchIndexer struct {
	db      *gorm.DB
	baseURL string
}

// NewSearchIndexer 创建搜索索引订阅者
func NewSearchIndexer(db *gorm.DB, baseURL string) *SearchIndexer {
	return &SearchIndexer{db: db, baseURL: baseURL}
}

func (s *SearchIndexer) Name() string { return "search_indexer" }

func (s *SearchIndexer) EventTypes() []string {
	return []string{TypeBountyRevised}
}

func (s *SearchIndexer) Handle(ctx context.Context, e Event) error {
	revised, ok := e.(BountyRevised)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	db := s.db.WithContext(ctx)
	b := revised.Bounty

	if b != nil && b.Persisted() && b.CurrentBounty && !b.AdminOverrideAndHide {
		doc := model.SearchResult{
			SourceType:  SearchSourceBounty,
			SourceId:    b.Id,
			CreatedOn:   b.Web3Created,
			Title:       b.Title,
			Description: b.IssueDescription,
			URL:         lifecycle.AbsoluteURL(s.baseURL, b),
			ImgURL:      lifecycle.AvatarURL(s.baseURL, b, true),
			Slug:        slug.Make(b.Title),
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"created_on", "title", "description", "url", "img_url", "slug", "updated_at"}),
		}).Create(&doc).Error; err != nil {
			return fmt.Errorf("upsert search result for bounty %d: %w", b.Id, err)
		}
	}

	if b != nil && b.Persisted() && b.AdminOverrideAndHide {
		if err := s.remove(db, b.Id); err != nil {
			return err
		}
	}

	prev := revised.Previous
	if prev != nil && prev.Persisted() && (b == nil || prev.Id != b.Id) {
		if err := s.remove(db, prev.Id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SearchIndexer) remove(db *gorm.DB, bountyID int64) error {
	if err := db.Where("source_type = ? AND source_id = ?", SearchSourceBounty, bountyID).
		Delete(&model.SearchResult{}).Error; err != nil {
		return fmt.Errorf("delete search result for bounty %d: %w", bountyID, err)
	}
	return nil
}
