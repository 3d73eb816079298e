package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
)

type mockPersonRepo struct {
	people map[string]*models.Person
}

func newMockPersonRepo(people ...*models.Person) *mockPersonRepo {
	repo := &mockPersonRepo{people: map[string]*models.Person{}}
	for _, p := range people {
		repo.people[p.ID] = p
	}
	return repo
}

func (m *mockPersonRepo) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	var out []models.Person
	for _, p := range m.people {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockPersonRepo) ListByRole(ctx context.Context, role models.PersonRole) ([]models.Person, error) {
	var out []models.Person
	for _, p := range m.people {
		if p.Role == role {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPersonRepo) FindByID(ctx context.Context, id string) (*models.Person, error) {
	p, ok := m.people[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockPersonRepo) ExistsByLogin(ctx context.Context, login, excludeID string) (bool, error) {
	for _, p := range m.people {
		if strings.EqualFold(p.Login, login) && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPersonRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for _, p := range m.people {
		if strings.EqualFold(p.Email, email) && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPersonRepo) Create(ctx context.Context, person *models.Person) error {
	person.ID = fmt.Sprintf("p-gen-%d", len(m.people)+1)
	cp := *person
	m.people[person.ID] = &cp
	return nil
}

func (m *mockPersonRepo) Update(ctx context.Context, person *models.Person) error {
	cp := *person
	m.people[person.ID] = &cp
	return nil
}

func (m *mockPersonRepo) Delete(ctx context.Context, id string) error {
	delete(m.people, id)
	return nil
}

func newPersonService(repo *mockPersonRepo, courses map[string]*models.Course) *PersonService {
	lookup := &mockCourseLookup{courses: courses}
	return NewPersonService(repo, lookup, &mockAuditStore{}, nil, nil, zap.NewNop())
}

type mockCourseLookup struct {
	courses map[string]*models.Course
}

func (m *mockCourseLookup) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func TestPersonServiceCreateDefaultsPasswordToLogin(t *testing.T) {
	repo := newMockPersonRepo()
	svc := newPersonService(repo, nil)

	person, err := svc.Create(context.Background(), models.UserInfo{}, CreatePersonRequest{
		Role:      "Coordenador",
		FirstName: "Joao",
		LastName:  "Souza",
		Login:     "jsouza",
		Email:     "jsouza@uni.br",
	})
	require.NoError(t, err)
	assert.Equal(t, "jsouza", person.Password)
}

func TestPersonServiceProfessorIgnoresProvidedPassword(t *testing.T) {
	repo := newMockPersonRepo()
	svc := newPersonService(repo, nil)

	secret := "segredo"
	person, err := svc.Create(context.Background(), models.UserInfo{}, CreatePersonRequest{
		Role:      "Professor",
		FirstName: "Ana",
		LastName:  "Lima",
		Login:     "alima",
		Email:     "alima@uni.br",
		Password:  &secret,
	})
	require.NoError(t, err)
	assert.Equal(t, "alima", person.Password)
}

func TestPersonServiceTutorRequiresCourse(t *testing.T) {
	repo := newMockPersonRepo()
	svc := newPersonService(repo, map[string]*models.Course{
		"c1": {ID: "c1", Name: "Mestrado CC"},
	})

	_, err := svc.Create(context.Background(), models.UserInfo{}, CreatePersonRequest{
		Role:      "Tutor",
		FirstName: "Beto",
		LastName:  "Cruz",
		Login:     "bcruz",
		Email:     "bcruz@uni.br",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	courseID := "c1"
	person, err := svc.Create(context.Background(), models.UserInfo{}, CreatePersonRequest{
		Role:      "Tutor",
		FirstName: "Beto",
		LastName:  "Cruz",
		Login:     "bcruz",
		Email:     "bcruz@uni.br",
		CourseID:  &courseID,
	})
	require.NoError(t, err)
	require.NotNil(t, person.CourseName)
	assert.Equal(t, "Mestrado CC", *person.CourseName)
}

func TestPersonServiceLoginUniquenessIsCaseInsensitive(t *testing.T) {
	repo := newMockPersonRepo(&models.Person{ID: "p1", Role: models.RoleCoordenador, Login: "JSouza", Email: "j@uni.br"})
	svc := newPersonService(repo, nil)

	_, err := svc.Create(context.Background(), models.UserInfo{}, CreatePersonRequest{
		Role:      "Coordenador",
		FirstName: "Outro",
		LastName:  "Souza",
		Login:     "jsouza",
		Email:     "outro@uni.br",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPersonServiceUpdateExcludesSelfFromUniqueness(t *testing.T) {
	repo := newMockPersonRepo(&models.Person{
		ID: "p1", Role: models.RoleCoordenador, FirstName: "Joao", LastName: "Souza",
		Login: "jsouza", Email: "jsouza@uni.br", Password: "jsouza",
	})
	svc := newPersonService(repo, nil)

	person, err := svc.Update(context.Background(), models.UserInfo{}, "p1", UpdatePersonRequest{
		Role:      "Coordenador",
		FirstName: "Joao",
		LastName:  "Souza Filho",
		Login:     "jsouza",
		Email:     "jsouza@uni.br",
	})
	require.NoError(t, err)
	assert.Equal(t, "Souza Filho", person.LastName)
	assert.Equal(t, "jsouza", person.Password, "existing password survives when the payload omits one")
}
