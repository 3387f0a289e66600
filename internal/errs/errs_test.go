package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		code   errs.Code
		status int
	}{
		{progress.ErrInvalidDate, errs.CodeInvalidInput, http.StatusBadRequest},
		{&project.TotalsError{Method: project.MethodBor, Completed: 3}, errs.CodeInvalidInput, http.StatusBadRequest},
		{employee.ErrUnauthenticated, errs.CodeUnauthenticated, http.StatusUnauthorized},
		{employee.ErrEmployeeNotFound, errs.CodeNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", project.ErrProjectNotFound), errs.CodeNotFound, http.StatusNotFound},
		{progress.ErrRecordNotFound, errs.CodeNotFound, http.StatusNotFound},
		{progress.ErrAfterEnd, errs.CodeOutOfRange, http.StatusUnprocessableEntity},
		{progress.ErrConfirmationRequired, errs.CodeConfirmationRequired, http.StatusConflict},
		{fmt.Errorf("inserting: %w", progress.ErrConflict), errs.CodeConflict, http.StatusConflict},
		{errors.New("driver exploded"), errs.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := errs.Classify(tc.err)
		require.Equal(t, tc.code, got.Code, tc.err.Error())
		require.Equal(t, tc.status, got.Code.HTTPStatus())
	}
	require.Nil(t, errs.Classify(nil))
}

func TestClassify_BoundsDetails(t *testing.T) {
	err := fmt.Errorf("upsert: %w", &progress.BoundsError{Methods: []project.Method{project.MethodSondir, project.MethodCPTU}})
	got := errs.Classify(err)
	require.Equal(t, errs.CodeBoundsViolation, got.Code)
	require.Equal(t, []string{"sondir", "cptu"}, got.Details["methods"])
	require.Contains(t, got.Message, "Sondir, CPTU")
}

func TestClassify_InternalHidesMessage(t *testing.T) {
	got := errs.Classify(errors.New("pq: password authentication failed"))
	require.Equal(t, "internal error", got.Message)
}

func TestClassify_ConflictIsRetryable(t *testing.T) {
	got := errs.Classify(progress.ErrConflict)
	require.Equal(t, true, got.Details["retryable"])
}
