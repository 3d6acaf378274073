package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("load tenant: %w", ErrNotFound)
	assert.True(t, errors.Is(wrapped, ErrNotFound))

	copyOfNotFound := NewDomainError("NOT_FOUND", "tenant not found")
	assert.True(t, errors.Is(copyOfNotFound, ErrNotFound))
	assert.False(t, errors.Is(copyOfNotFound, ErrForbidden))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "FORBIDDEN", CodeOf(fmt.Errorf("x: %w", ErrForbidden)))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, Filter{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 40, Filter{Page: 3, PageSize: 20}.Offset())
	assert.Equal(t, 0, Filter{Page: 0, PageSize: 20}.Offset())
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 41, 1, 20)
	assert.Equal(t, 3, p.TotalPages)

	empty := NewPaginated([]int{}, 0, 1, 0)
	assert.Equal(t, 0, empty.TotalPages)
}
