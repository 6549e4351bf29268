/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in checkin/ and vault/ from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers around lists and pages

TYPES:
  Profile:
    ProfileDTO, CreateProfileRequest, UpdateProfileRequest

  Questionnaire:
    QuestionnaireDTO, QuestionDTO, OptionDTO, UpdateQuestionnaireRequest

  Check-in:
    RecordDTO, SubmitCheckinRequest, RemedialCheckinRequest,
    RecordPageResponse, MissingDatesResponse, StreakResponse, StatsDTO,
    TodayResponse

  Vault:
    VaultSummaryDTO, TransactionDTO, WithdrawRequest

VALIDATION:
  Request types carry validator tags for shape checks (required fields,
  enums, lengths). Domain rules such as score ranges and reward thresholds
  are checked by the checkin package and reported the same way.

AMOUNTS:
  Decimal values are serialized as JSON strings ("2.5") and accepted as
  either strings or numbers.

SEE ALSO:
  - handlers.go: Uses these types
  - checkin/types.go: Domain model
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/habit-vault/calendar"
	"github.com/warp/habit-vault/checkin"
	"github.com/warp/habit-vault/vault"
)

// =============================================================================
// QUESTIONNAIRE
// =============================================================================

type OptionDTO struct {
	ID    string          `json:"id" validate:"required,max=64"`
	Text  string          `json:"text" validate:"max=500"`
	Score decimal.Decimal `json:"score"`
}

type QuestionDTO struct {
	ID       string           `json:"id" validate:"required,max=64"`
	Type     string           `json:"type" validate:"required,oneof=single_choice multiple_choice free_text numeric_score"`
	Title    string           `json:"title" validate:"required,max=500"`
	Required bool             `json:"required"`
	Options  []OptionDTO      `json:"options,omitempty" validate:"dive"`
	MaxScore *decimal.Decimal `json:"max_score,omitempty"`
}

type QuestionnaireDTO struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Questions []QuestionDTO `json:"questions"`
	MaxScore  string        `json:"max_score"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type UpdateQuestionnaireRequest struct {
	Title     string        `json:"title" validate:"max=200"`
	Questions []QuestionDTO `json:"questions" validate:"required,min=1,dive"`
}

// =============================================================================
// PROFILE
// =============================================================================

type RecurrenceDTO struct {
	Type        string               `json:"type" validate:"required,oneof=daily weekly custom"`
	WeeklyDays  []int                `json:"weekly_days,omitempty"`
	CustomDates []calendar.LocalDate `json:"custom_dates,omitempty"`
}

type RewardRuleDTO struct {
	Threshold decimal.Decimal `json:"threshold"`
	Amount    decimal.Decimal `json:"amount"`
}

type ProfileDTO struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	QuestionnaireID string          `json:"questionnaire_id"`
	Recurrence      RecurrenceDTO   `json:"recurrence"`
	RewardRules     []RewardRuleDTO `json:"reward_rules"`
	ReminderTime    string          `json:"reminder_time,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ProfileDetailResponse is returned on create so clients get the generated
// question ids and max score in one round trip.
type ProfileDetailResponse struct {
	Profile       ProfileDTO       `json:"profile"`
	Questionnaire QuestionnaireDTO `json:"questionnaire"`
}

type CreateProfileRequest struct {
	Title        string          `json:"title" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=2000"`
	Questions    []QuestionDTO   `json:"questions" validate:"required,min=1,dive"`
	Recurrence   RecurrenceDTO   `json:"recurrence"`
	RewardRules  []RewardRuleDTO `json:"reward_rules"`
	ReminderTime string          `json:"reminder_time"`
}

// UpdateProfileRequest is a partial update. Absent fields are unchanged.
type UpdateProfileRequest struct {
	Title        *string         `json:"title" validate:"omitempty,max=200"`
	Description  *string         `json:"description" validate:"omitempty,max=2000"`
	Recurrence   *RecurrenceDTO  `json:"recurrence"`
	RewardRules  []RewardRuleDTO `json:"reward_rules"`
	ReminderTime *string         `json:"reminder_time"`
	IsActive     *bool           `json:"is_active"`
}

// =============================================================================
// CHECK-IN
// =============================================================================

type SubmitCheckinRequest struct {
	Answers checkin.Answers `json:"answers" validate:"required"`
}

type RemedialCheckinRequest struct {
	Date    string          `json:"date" validate:"required,datetime=2006-01-02"`
	Answers checkin.Answers `json:"answers" validate:"required"`
}

type RecordDTO struct {
	ID           string             `json:"id"`
	ProfileID    string             `json:"profile_id"`
	Date         calendar.LocalDate `json:"date"`
	Answers      checkin.Answers    `json:"answers"`
	Score        string             `json:"score"`
	RewardAmount string             `json:"reward_amount"`
	IsRemedial   bool               `json:"is_remedial"`
	CreatedAt    time.Time          `json:"created_at"`
}

type RecordPageResponse struct {
	Records []RecordDTO `json:"records"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

type MissingDatesResponse struct {
	ProfileID string               `json:"profile_id"`
	Dates     []calendar.LocalDate `json:"dates"`
}

type StreakResponse struct {
	ProfileID string `json:"profile_id"`
	Streak    int    `json:"streak"`
}

type StatsDTO struct {
	ProfileID       string               `json:"profile_id"`
	CurrentStreak   int                  `json:"current_streak"`
	TotalRecords    int                  `json:"total_records"`
	RemedialRecords int                  `json:"remedial_records"`
	TotalRewards    string               `json:"total_rewards"`
	LastCheckin     *calendar.LocalDate  `json:"last_checkin,omitempty"`
	MissingDates    []calendar.LocalDate `json:"missing_dates"`
}

type TodayItemDTO struct {
	Profile   ProfileDTO `json:"profile"`
	Completed bool       `json:"completed"`
	Record    *RecordDTO `json:"record,omitempty"`
}

type TodayResponse struct {
	Date  calendar.LocalDate `json:"date"`
	Items []TodayItemDTO     `json:"items"`
}

// =============================================================================
// VAULT
// =============================================================================

type VaultSummaryDTO struct {
	Balance        string `json:"balance"`
	TotalCredited  string `json:"total_credited"`
	TotalWithdrawn string `json:"total_withdrawn"`
	Transactions   int    `json:"transactions"`
}

type TransactionDTO struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Delta       string    `json:"delta"`
	Description string    `json:"description"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type WithdrawRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required,max=200"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error    string            `json:"error"`
	Code     string            `json:"code,omitempty"`
	Details  string            `json:"details,omitempty"`
	Problems []checkin.Problem `json:"problems,omitempty"`
}

// =============================================================================
// MAPPING - request -> domain
// =============================================================================

func (q QuestionDTO) toDomain() checkin.QuestionDefinition {
	def := checkin.QuestionDefinition{
		ID:       q.ID,
		Type:     checkin.QuestionType(q.Type),
		Title:    q.Title,
		Required: q.Required,
		MaxScore: q.MaxScore,
	}
	for _, o := range q.Options {
		def.Options = append(def.Options, checkin.Option{ID: o.ID, Text: o.Text, Score: o.Score})
	}
	return def
}

func questionsToDomain(qs []QuestionDTO) []checkin.QuestionDefinition {
	out := make([]checkin.QuestionDefinition, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.toDomain())
	}
	return out
}

func (r RecurrenceDTO) toDomain() checkin.RecurrenceRule {
	return checkin.RecurrenceRule{
		Type:        checkin.RecurrenceType(r.Type),
		WeeklyDays:  r.WeeklyDays,
		CustomDates: r.CustomDates,
	}
}

// rulesToDomain keeps nil as nil: on update that means "unchanged".
func rulesToDomain(rs []RewardRuleDTO) []checkin.RewardRule {
	if rs == nil {
		return nil
	}
	out := make([]checkin.RewardRule, 0, len(rs))
	for _, r := range rs {
		out = append(out, checkin.RewardRule{Threshold: r.Threshold, Amount: r.Amount})
	}
	return out
}

func (req CreateProfileRequest) toInput() checkin.ProfileInput {
	return checkin.ProfileInput{
		Title:        req.Title,
		Description:  req.Description,
		Questions:    questionsToDomain(req.Questions),
		Recurrence:   req.Recurrence.toDomain(),
		RewardRules:  rulesToDomain(req.RewardRules),
		ReminderTime: req.ReminderTime,
	}
}

func (req UpdateProfileRequest) toUpdate() checkin.ProfileUpdate {
	upd := checkin.ProfileUpdate{
		Title:        req.Title,
		Description:  req.Description,
		RewardRules:  rulesToDomain(req.RewardRules),
		ReminderTime: req.ReminderTime,
		IsActive:     req.IsActive,
	}
	if req.Recurrence != nil {
		rule := req.Recurrence.toDomain()
		upd.Recurrence = &rule
	}
	return upd
}

// =============================================================================
// MAPPING - domain -> response
// =============================================================================

func toProfileDTO(p checkin.Profile) ProfileDTO {
	dto := ProfileDTO{
		ID:              string(p.ID),
		Title:           p.Title,
		Description:     p.Description,
		QuestionnaireID: string(p.QuestionnaireID),
		Recurrence: RecurrenceDTO{
			Type:        string(p.Recurrence.Type),
			WeeklyDays:  p.Recurrence.WeeklyDays,
			CustomDates: p.Recurrence.CustomDates,
		},
		RewardRules:  make([]RewardRuleDTO, 0, len(p.RewardRules)),
		ReminderTime: p.ReminderTime,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	for _, r := range p.RewardRules {
		dto.RewardRules = append(dto.RewardRules, RewardRuleDTO{Threshold: r.Threshold, Amount: r.Amount})
	}
	return dto
}

func toQuestionnaireDTO(q checkin.Questionnaire) QuestionnaireDTO {
	dto := QuestionnaireDTO{
		ID:        string(q.ID),
		Title:     q.Title,
		Questions: make([]QuestionDTO, 0, len(q.Questions)),
		MaxScore:  checkin.MaxScore(q.Questions).String(),
		UpdatedAt: q.UpdatedAt,
	}
	for _, def := range q.Questions {
		qd := QuestionDTO{
			ID:       def.ID,
			Type:     string(def.Type),
			Title:    def.Title,
			Required: def.Required,
			MaxScore: def.MaxScore,
		}
		for _, o := range def.Options {
			qd.Options = append(qd.Options, OptionDTO{ID: o.ID, Text: o.Text, Score: o.Score})
		}
		dto.Questions = append(dto.Questions, qd)
	}
	return dto
}

func toRecordDTO(r checkin.Record) RecordDTO {
	return RecordDTO{
		ID:           string(r.ID),
		ProfileID:    string(r.ProfileID),
		Date:         r.Date,
		Answers:      r.Answers,
		Score:        r.Score.String(),
		RewardAmount: r.RewardAmount.String(),
		IsRemedial:   r.IsRemedial,
		CreatedAt:    r.CreatedAt,
	}
}

func toStatsDTO(s checkin.ProfileStats) StatsDTO {
	return StatsDTO{
		ProfileID:       string(s.ProfileID),
		CurrentStreak:   s.CurrentStreak,
		TotalRecords:    s.TotalRecords,
		RemedialRecords: s.RemedialRecords,
		TotalRewards:    s.TotalRewards.String(),
		LastCheckin:     s.LastCheckin,
		MissingDates:    nonNilDates(s.MissingDates),
	}
}

func toVaultSummaryDTO(s vault.Summary) VaultSummaryDTO {
	return VaultSummaryDTO{
		Balance:        s.Balance.String(),
		TotalCredited:  s.TotalCredited.String(),
		TotalWithdrawn: s.TotalWithdrawn.String(),
		Transactions:   s.Transactions,
	}
}

func toTransactionDTO(tx vault.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		Type:        string(tx.Type),
		Delta:       tx.Delta.String(),
		Description: tx.Description,
		ReferenceID: tx.ReferenceID,
		CreatedAt:   tx.CreatedAt,
	}
}

// nonNilDates keeps empty lists as [] rather than null in JSON.
func nonNilDates(ds []calendar.LocalDate) []calendar.LocalDate {
	if ds == nil {
		return []calendar.LocalDate{}
	}
	return ds
}
