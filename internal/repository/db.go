package repository

import (
	"context"
	"errors"
	"time"

	"github.com/maane-ai/assist-service/internal/domain"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// TenantRepository defines the interface for tenant operations
type TenantRepository interface {
	Create(ctx context.Context, req *domain.CreateTenantRequest) (*domain.Tenant, error)

	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetByTenantID(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetByPhoneNumber(ctx context.Context, phone string) (*domain.Tenant, error)
	GetByWhatsAppPhoneID(ctx context.Context, phoneID string) (*domain.Tenant, error)
	GetAll(ctx context.Context, includeDisabled bool) ([]*domain.Tenant, error)

	Update(ctx context.Context, id string, req *domain.UpdateTenantRequest) (*domain.Tenant, error)

	// Delete soft-disables the tenant.
	Delete(ctx context.Context, id string) error

	ExistsByTenantID(ctx context.Context, tenantID string) (bool, error)
}

// PromptTemplateRepository defines the interface for prompt template operations
type PromptTemplateRepository interface {
	GetByTenantAndChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.PromptTemplate, error)
	Upsert(ctx context.Context, tenantID string, channel domain.Channel, req *domain.UpsertPromptTemplateRequest) (*domain.PromptTemplate, error)
	Delete(ctx context.Context, tenantID string, channel domain.Channel) error
}

// LeadRepository defines the interface for CRM lead operations
type LeadRepository interface {
	UpsertByPhone(ctx context.Context, tenantID string, req *domain.UpsertLeadRequest) (*domain.Lead, error)
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	GetByPhone(ctx context.Context, tenantID, phone string) (*domain.Lead, error)
	List(ctx context.Context, tenantID string, filter *domain.LeadFilter) ([]*domain.Lead, error)
	UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) (*domain.Lead, error)
	AppendNote(ctx context.Context, id, note string) error
	TouchLastContact(ctx context.Context, id string) error
}

// AppointmentRepository defines the interface for appointment operations
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error)
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	ListBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*domain.Appointment, error)
	ExistsOverlap(ctx context.Context, tenantID string, startsAt, endsAt time.Time) (bool, error)
	Cancel(ctx context.Context, id string) error
}

// ConversationRepository defines the interface for conversation persistence
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, tenantID, phone string, channel domain.Channel) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, conversationID string, msg *domain.Message) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
	End(ctx context.Context, conversationID string) error
}

// CallRecordRepository defines the interface for call record persistence
type CallRecordRepository interface {
	Create(ctx context.Context, rec *domain.CallRecord) (*domain.CallRecord, error)
	GetByCallSID(ctx context.Context, callSID string) (*domain.CallRecord, error)
	UpdateStatus(ctx context.Context, callSID, status string) (*domain.CallRecord, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*domain.CallRecord, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	Tenant() TenantRepository
	PromptTemplate() PromptTemplateRepository
	Lead() LeadRepository
	Appointment() AppointmentRepository
	Conversation() ConversationRepository
	CallRecord() CallRecordRepository

	// Transaction support
	WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db               *gorm.DB
	tenantRepo       *GormTenantRepository
	promptRepo       *GormPromptTemplateRepository
	leadRepo         *GormLeadRepository
	appointmentRepo  *GormAppointmentRepository
	conversationRepo *GormConversationRepository
	callRecordRepo   *GormCallRecordRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:               db,
		tenantRepo:       NewGormTenantRepository(db),
		promptRepo:       NewGormPromptTemplateRepository(db),
		leadRepo:         NewGormLeadRepository(db),
		appointmentRepo:  NewGormAppointmentRepository(db),
		conversationRepo: NewGormConversationRepository(db),
		callRecordRepo:   NewGormCallRecordRepository(db),
	}
}

// Tenant returns the tenant repository
func (m *GormRepositoryManager) Tenant() TenantRepository { return m.tenantRepo }

// PromptTemplate returns the prompt template repository
func (m *GormRepositoryManager) PromptTemplate() PromptTemplateRepository { return m.promptRepo }

// Lead returns the lead repository
func (m *GormRepositoryManager) Lead() LeadRepository { return m.leadRepo }

// Appointment returns the appointment repository
func (m *GormRepositoryManager) Appointment() AppointmentRepository { return m.appointmentRepo }

// Conversation returns the conversation repository
func (m *GormRepositoryManager) Conversation() ConversationRepository { return m.conversationRepo }

// CallRecord returns the call record repository
func (m *GormRepositoryManager) CallRecord() CallRecordRepository { return m.callRecordRepo }

// WithTx executes a function within a database transaction
func (m *GormRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormRepositoryManager(tx))
	})
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
