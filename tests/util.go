package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/core/user"
	logsvc "github.com/trezcool/masomo-connect/services/logger"
	"github.com/trezcool/masomo-connect/storage/database"
)

// NewConfig returns a test config, with a fixed secret key and no external services.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:             "test",
		TestMode:        true,
		AppName:         "Masomo",
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://localhost:3000",
	}
	conf.Server.JWTExpirationDelta = 15 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 7 * 24 * time.Hour
	conf.Messaging.DefaultCountryCode = "243"
	return conf
}

// PrepareDB creates, migrates and empties the PostgreSQL test database configured by the TEST_DATABASE_* env vars.
// Skips the test when TEST_DATABASE_NAME is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("TEST_DATABASE_NAME") == "" {
		t.Skip("TEST_DATABASE_NAME not set: skipping PostgreSQL tests")
	}
	t.Setenv("ENV", "test")
	conf := core.NewConfig()

	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("prepareDB() failed: %v", err)
	}
	db, err := database.OpenX(conf)
	if err != nil {
		t.Fatalf("prepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("prepareDB() failed: %v", err)
	}
	if _, err = db.Exec(`TRUNCATE message, conversation, message_template, "user" CASCADE`); err != nil {
		t.Fatalf("prepareDB() failed: %v", err)
	}
	return db
}

// NewLogger returns a logger that discards everything.
func NewLogger() core.Logger {
	l := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
	l.Enable(false)
	return l
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, phone, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Phone:     phone,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateConversation creates a conversation with `phone`, whose last inbound message was at `lastInboundAt`.
func CreateConversation(
	t *testing.T,
	repo messaging.Repository,
	phone string,
	pType messaging.ParticipantType,
	lastInboundAt *time.Time,
) messaging.Conversation {
	t.Helper()
	ctx := context.Background()
	conv, err := repo.CreateConversation(ctx, messaging.Conversation{
		Phone:           phone,
		ParticipantType: pType,
		ParticipantName: phone,
		Metadata:        map[string]string{messaging.MetaIdentifiedBy: "none"},
	})
	if err != nil {
		t.Fatalf("createConversation() failed: %v", err)
	}
	if lastInboundAt != nil {
		_, err = repo.CreateMessage(ctx, messaging.Message{
			ConversationID: conv.ID,
			Direction:      messaging.DirectionInbound,
			Kind:           messaging.KindText,
			Content:        "hello",
			Status:         messaging.StatusReceived,
			CreatedAt:      lastInboundAt.UTC(),
		})
		if err != nil {
			t.Fatalf("createConversation() failed: %v", err)
		}
		if conv, err = repo.TouchConversation(ctx, conv.ID, messaging.DirectionInbound, *lastInboundAt, 1); err != nil {
			t.Fatalf("createConversation() failed: %v", err)
		}
	}
	return conv
}

// CreateTemplate saves a template, approved unless `status` says otherwise.
func CreateTemplate(t *testing.T, repo messaging.Repository, name, body string, status ...messaging.TemplateStatus) messaging.Template {
	t.Helper()
	st := messaging.TemplateApproved
	if len(status) > 0 {
		st = status[0]
	}
	tmpl, err := repo.UpdateOrCreateTemplate(context.Background(), messaging.Template{
		Name:     name,
		Body:     body,
		Language: "en",
		Category: messaging.CategoryUtility,
		Status:   st,
	})
	if err != nil {
		t.Fatalf("createTemplate() failed: %v", err)
	}
	return tmpl
}
