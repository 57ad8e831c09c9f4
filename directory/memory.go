package directory

import (
	"context"
	"sync"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/errors"
)

var _ contract.IDirectory = (*Memory)(nil)

// Memory is a deterministic in-process directory. Tests use it to stage
// families and flip memberships mid-scenario; local runs use it to avoid
// a running directory service.
type Memory struct {
	mu       sync.RWMutex
	users    map[domain.UserID]domain.Principal
	members  map[domain.FamilyID][]domain.Member
	profiles map[domain.UserID]domain.Profile
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[domain.UserID]domain.Principal),
		members:  make(map[domain.FamilyID][]domain.Member),
		profiles: make(map[domain.UserID]domain.Profile),
	}
}

func (m *Memory) AddUser(p domain.Principal, profile domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[p.UserID] = p
	m.profiles[p.UserID] = profile
}

func (m *Memory) AddMember(member domain.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.FamilyID] = append(m.members[member.FamilyID], member)
}

// RemoveMember simulates a revocation by the Directory Service, the
// trigger for the membership race the store must close.
func (m *Memory) RemoveMember(familyID domain.FamilyID, userID domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.members[familyID][:0]
	for _, member := range m.members[familyID] {
		if member.UserID != userID {
			kept = append(kept, member)
		}
	}
	m.members[familyID] = kept
}

// SeedDemo stages the fixtures local runs and end-to-end scenarios
// expect: family 1 with users 101 (owner) and 102 (member).
func (m *Memory) SeedDemo() {
	m.AddUser(domain.Principal{UserID: 101, Email: "alice@example.com"}, domain.Profile{DisplayName: "Alice"})
	m.AddUser(domain.Principal{UserID: 102, Email: "bob@example.com"}, domain.Profile{DisplayName: "Bob"})
	m.AddMember(domain.Member{ID: 1, FamilyID: 1, UserID: 101, Role: domain.RoleOwner, IsActive: true})
	m.AddMember(domain.Member{ID: 2, FamilyID: 1, UserID: 102, Role: domain.RoleMember, IsActive: true})
}

func (m *Memory) UserByID(_ context.Context, id domain.UserID) (domain.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.users[id]
	if !ok {
		return domain.Anonymous, errors.ErrUserNotFound
	}
	return p, nil
}

func (m *Memory) ActiveMembers(_ context.Context, familyID domain.FamilyID) ([]domain.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active []domain.Member
	for _, member := range m.members[familyID] {
		if member.IsActive {
			active = append(active, member)
		}
	}
	return active, nil
}

func (m *Memory) MemberOf(_ context.Context, familyID domain.FamilyID, userID domain.UserID) (domain.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, member := range m.members[familyID] {
		if member.UserID == userID && member.IsActive {
			return member, nil
		}
	}
	return domain.Member{}, errors.ErrNotAMember
}

func (m *Memory) Profile(_ context.Context, id domain.UserID) (domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profile, ok := m.profiles[id]
	if !ok {
		return domain.Profile{}, errors.ErrUserNotFound
	}
	return profile, nil
}
