package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/core/user"
)

type (
	// DB is an in-memory store, safe for concurrent use. Used by tests & local runs without postgres.
	DB struct {
		user      *userTable
		messaging *messagingTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	// conversations, messages & templates share a lock so that multi-table updates are atomic.
	messagingTables struct {
		sync.RWMutex
		conversations map[string]*messaging.Conversation
		messages      map[string]*messaging.Message
		templates     map[string]*messaging.Template
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		messaging: &messagingTables{
			conversations: make(map[string]*messaging.Conversation),
			messages:      make(map[string]*messaging.Message),
			templates:     make(map[string]*messaging.Template),
		},
	}
}
