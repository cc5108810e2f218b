package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/core/user"
	inmemdb "github.com/trezcool/masomo-connect/storage/database/inmem"
	testutil "github.com/trezcool/masomo-connect/tests"
)

func TestService_ResolveParticipant(t *testing.T) {
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	svc := user.NewService(repo, testutil.NewLogger(), testutil.NewConfig())

	teacher := testutil.CreateUser(t, repo, "Teacher", "teacher", "teacher@masomo.cd", "+243990000001", "", []string{user.RoleTeacher}, true)
	parent := testutil.CreateUser(t, repo, "Parent", "parent", "parent@masomo.cd", "+243990000002", "", []string{user.RoleParent, user.RoleStaff}, false)

	tests := []struct {
		name     string
		phone    string
		wantType messaging.ParticipantType
		wantID   string
		wantBy   string
	}{
		{name: "unknown phone", phone: "+243990000009", wantType: messaging.ParticipantUnknown, wantBy: "none"},
		{name: "invalid phone", phone: "abc", wantType: messaging.ParticipantUnknown, wantBy: "none"},
		{name: "local format", phone: "0990000001", wantType: messaging.ParticipantTeacher, wantID: teacher.ID, wantBy: "user_directory"},
		{name: "highest role wins, inactive still classified", phone: "+243 99 000 0002", wantType: messaging.ParticipantEmployee, wantID: parent.ID, wantBy: "user_directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.ResolveParticipant(context.Background(), tt.phone)
			if err != nil {
				t.Fatalf("ResolveParticipant() failed: %v", err)
			}
			if p.Type != tt.wantType {
				t.Errorf("failed! type = %v; want %v", p.Type, tt.wantType)
			}
			if p.ID != tt.wantID {
				t.Errorf("failed! id = %v; want %v", p.ID, tt.wantID)
			}
			assert.Equal(t, tt.wantBy, p.Metadata[messaging.MetaIdentifiedBy])
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, p.Metadata[messaging.MetaUserID])
			}
		})
	}
}
