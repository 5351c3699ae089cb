package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hanashite/internal/database"
	"hanashite/internal/models"
	"hanashite/internal/repository"
)

// TopicService serves the speaking prompts
type TopicService struct {
	db     *database.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewTopicService creates a new topic service
func NewTopicService(db *database.DB, logger *zap.Logger) *TopicService {
	return &TopicService{db: db, logger: logger, now: time.Now}
}

// List returns active topics, optionally for one category
func (s *TopicService) List(ctx context.Context, category string) ([]models.Topic, error) {
	return repository.NewTopicRepository(s.db).ListActive(ctx, category)
}

// Categories returns each category with its number of active topics
func (s *TopicService) Categories(ctx context.Context) ([]models.CategorySummary, error) {
	return repository.NewTopicRepository(s.db).Categories(ctx)
}

// SeedDefaultTopics upserts the built-in topics and returns how many were written.
// Re-running it refreshes the text without duplicating rows.
func (s *TopicService) SeedDefaultTopics(ctx context.Context) (int, error) {
	now := s.now()
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		repo := repository.NewTopicRepository(tx)
		for i := range defaultTopics {
			t := defaultTopics[i]
			if err := repo.Upsert(ctx, &t, now); err != nil {
				return fmt.Errorf("seed topic %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("seeded default topics", zap.Int("count", len(defaultTopics)))
	return len(defaultTopics), nil
}

var defaultTopics = []models.Topic{
	{ID: "daily-food", Category: "日常・趣味", Title: "好きな食べ物について話してください", Hints: []string{"どんな料理が好きですか？なぜ好きですか？"}, TargetLevel: "N4", DisplayOrder: 1, IsActive: true},
	{ID: "daily-weekend", Category: "日常・趣味", Title: "週末の過ごし方について話してください", Hints: []string{"普段の週末は何をしていますか？"}, TargetLevel: "N4", DisplayOrder: 2, IsActive: true},
	{ID: "daily-season", Category: "日常・趣味", Title: "好きな季節について話してください", Hints: []string{"どの季節が好きですか？その理由は？"}, TargetLevel: "N4", DisplayOrder: 3, IsActive: true},
	{ID: "daily-hobby", Category: "日常・趣味", Title: "趣味について話してください", Hints: []string{"どんな趣味を持っていますか？いつから始めましたか？"}, TargetLevel: "N3", DisplayOrder: 4, IsActive: true},
	{ID: "daily-movie", Category: "日常・趣味", Title: "最近見た映画やドラマについて話してください", Hints: []string{"どんな内容でしたか？感想は？"}, TargetLevel: "N3", DisplayOrder: 5, IsActive: true},

	{ID: "explain-work", Category: "説明・経験", Title: "自分の仕事や学校について説明してください", Hints: []string{"どんなことをしていますか？典型的な一日は？"}, TargetLevel: "N3", DisplayOrder: 1, IsActive: true},
	{ID: "explain-fun", Category: "説明・経験", Title: "最近の楽しかった出来事について話してください", Hints: []string{"いつ、どこで、何があった？"}, TargetLevel: "N3", DisplayOrder: 2, IsActive: true},
	{ID: "explain-childhood", Category: "説明・経験", Title: "子供の頃の思い出について話してください", Hints: []string{"どんな思い出がありますか？"}, TargetLevel: "N2", DisplayOrder: 3, IsActive: true},
	{ID: "explain-travel", Category: "説明・経験", Title: "旅行の経験について話してください", Hints: []string{"どこへ行きましたか？何が印象的でしたか？"}, TargetLevel: "N3", DisplayOrder: 4, IsActive: true},
	{ID: "explain-failure", Category: "説明・経験", Title: "失敗から学んだことについて話してください", Hints: []string{"どんな失敗？何を学びましたか？"}, TargetLevel: "N2", DisplayOrder: 5, IsActive: true},

	{ID: "opinion-environment", Category: "意見・提案", Title: "環境問題についてあなたの意見を聞かせてください", Hints: []string{"どんな問題が重要？解決策は？"}, TargetLevel: "N2", DisplayOrder: 1, IsActive: true},
	{ID: "opinion-holiday", Category: "意見・提案", Title: "理想の休日の過ごし方を提案してください", Hints: []string{"どんな活動？なぜおすすめ？"}, TargetLevel: "N3", DisplayOrder: 2, IsActive: true},
	{ID: "opinion-health", Category: "意見・提案", Title: "健康的な生活のためのアドバイスをください", Hints: []string{"食事、運動、睡眠などについて"}, TargetLevel: "N3", DisplayOrder: 3, IsActive: true},
	{ID: "opinion-ai", Category: "意見・提案", Title: "AIやテクノロジーの未来について意見を聞かせてください", Hints: []string{"どんな変化が起こる？良い点と悪い点は？"}, TargetLevel: "N2", DisplayOrder: 4, IsActive: true},
	{ID: "opinion-language", Category: "意見・提案", Title: "外国語学習の効果的な方法を提案してください", Hints: []string{"どんな方法が効果的？なぜ？"}, TargetLevel: "N2", DisplayOrder: 5, IsActive: true},
}
