package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

func newDoctor(t *testing.T, userID uint, name, license, department string, specializations []string) models.Doctor {
	t.Helper()
	raw, err := json.Marshal(specializations)
	require.NoError(t, err)
	return models.Doctor{
		UserID:               userID,
		FullName:             name,
		Email:                name + "@clinic.test",
		Phone:                "0123",
		MedicalLicenseNumber: license,
		Specializations:      raw,
		Department:           department,
		HospitalName:         "City Hospital",
		Status:               models.DoctorStatusActive,
		VerificationStatus:   models.VerificationVerified,
	}
}

func TestDoctorRepositoryListFiltersAndPaginates(t *testing.T) {
	db := newTestDB(t)
	repo := NewDoctorRepository(db)
	ctx := context.Background()

	cardio := newDoctor(t, 1, "alice", "LIC-1", "Cardiology", []string{"Cardiology", "Internal Medicine"})
	cardio.RatingAverage = 4.5
	derm := newDoctor(t, 2, "bob", "LIC-2", "Dermatology", []string{"Dermatology"})
	derm.RatingAverage = 4.9
	pending := newDoctor(t, 3, "carol", "LIC-3", "Cardiology", []string{"Cardiology"})
	pending.Status = models.DoctorStatusPendingVerification
	pending.VerificationStatus = models.VerificationPending

	require.NoError(t, repo.Create(ctx, &cardio))
	require.NoError(t, repo.Create(ctx, &derm))
	require.NoError(t, repo.Create(ctx, &pending))

	doctors, total, err := repo.List(ctx, DoctorFilter{PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total, "unverified profiles must be hidden")
	require.Equal(t, "bob", doctors[0].FullName, "expected rating-descending order")

	doctors, total, err = repo.List(ctx, DoctorFilter{Specialization: "Internal Medicine", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "alice", doctors[0].FullName)

	doctors, total, err = repo.List(ctx, DoctorFilter{Search: "ALI", PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "alice", doctors[0].FullName)

	doctors, _, err = repo.List(ctx, DoctorFilter{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	require.Equal(t, "alice", doctors[0].FullName)
}

func TestDoctorRepositoryUniqueLicenseAndEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewDoctorRepository(db)
	ctx := context.Background()

	first := newDoctor(t, 1, "alice", "LIC-1", "Cardiology", []string{"Cardiology"})
	require.NoError(t, repo.Create(ctx, &first))

	dup := newDoctor(t, 2, "bob", "LIC-1", "Cardiology", []string{"Cardiology"})
	require.Error(t, repo.Create(ctx, &dup))
}

func TestDoctorRepositoryPendingAndDepartments(t *testing.T) {
	db := newTestDB(t)
	repo := NewDoctorRepository(db)
	ctx := context.Background()

	active := newDoctor(t, 1, "alice", "LIC-1", "Cardiology", []string{"Cardiology"})
	waiting := newDoctor(t, 2, "bob", "LIC-2", "Dermatology", []string{"Dermatology"})
	waiting.Status = models.DoctorStatusPendingVerification
	waiting.VerificationStatus = models.VerificationPending

	require.NoError(t, repo.Create(ctx, &active))
	require.NoError(t, repo.Create(ctx, &waiting))

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "bob", pending[0].FullName)

	departments, err := repo.Departments(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Cardiology"}, departments)
}
