package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	model "github.com/zhouzirui/heartlog/backend/internal/model/settings"
	"github.com/zhouzirui/heartlog/backend/internal/store"
)

// ErrInvalid 表示更新内容未通过校验。
var ErrInvalid = errors.New("invalid chat settings")

// UpdateRequest 是 PATCH /chat-settings 的请求体，未提供的字段保持不变。
type UpdateRequest struct {
	DailyFreeMessages           *int    `json:"dailyFreeMessages" validate:"omitempty,min=0,max=10000"`
	DailyFreePersonalAIMessages *int    `json:"dailyFreePersonalAIMessages" validate:"omitempty,min=0,max=10000"`
	PersonalAIPrompt            *string `json:"personalAIPrompt" validate:"omitempty,max=4000"`
	GeneralPrompt               *string `json:"generalPrompt" validate:"omitempty,max=4000"`
}

// Service 读写全局会话设置。
type Service struct {
	store    store.SettingsStore
	validate *validator.Validate
	now      func() time.Time
}

func NewService(st store.SettingsStore) *Service {
	return &Service{
		store:    st,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get 返回当前设置，从未保存过时返回默认值。
func (s *Service) Get(ctx context.Context) (model.ChatSettings, error) {
	cs, err := s.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return model.Defaults(), nil
	}
	if err != nil {
		return model.ChatSettings{}, fmt.Errorf("load chat settings: %w", err)
	}
	return cs, nil
}

// DailyLimit 返回指定会话类型的每日免费消息数，0 表示不限。
func (s *Service) DailyLimit(ctx context.Context, chatType string) (int, error) {
	cs, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return cs.DailyLimitFor(chatType), nil
}

// Update 校验并合并部分更新。
func (s *Service) Update(ctx context.Context, req UpdateRequest) (model.ChatSettings, error) {
	if err := s.validate.Struct(req); err != nil {
		return model.ChatSettings{}, fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	for name, prompt := range map[string]*string{"personalAIPrompt": req.PersonalAIPrompt, "generalPrompt": req.GeneralPrompt} {
		if prompt != nil && strings.TrimSpace(*prompt) == "" {
			return model.ChatSettings{}, fmt.Errorf("%w: %s must not be blank", ErrInvalid, name)
		}
	}

	cs, err := s.Get(ctx)
	if err != nil {
		return model.ChatSettings{}, err
	}
	if req.DailyFreeMessages != nil {
		cs.DailyFreeMessages = *req.DailyFreeMessages
	}
	if req.DailyFreePersonalAIMessages != nil {
		cs.DailyFreePersonalAIMessages = *req.DailyFreePersonalAIMessages
	}
	if req.PersonalAIPrompt != nil {
		cs.PersonalAIPrompt = strings.TrimSpace(*req.PersonalAIPrompt)
	}
	if req.GeneralPrompt != nil {
		cs.GeneralPrompt = strings.TrimSpace(*req.GeneralPrompt)
	}
	cs.UpdatedAt = s.now()

	if err := s.store.SaveSettings(ctx, cs); err != nil {
		return model.ChatSettings{}, fmt.Errorf("save chat settings: %w", err)
	}
	return cs, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return strings.Join(parts, "; ")
}
