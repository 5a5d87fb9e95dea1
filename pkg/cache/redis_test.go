package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "booking:sessions:course-1:all", Key("sessions", "course-1", "all"))
	assert.Equal(t, "booking:sessions:course-1:*", Key("sessions", "course-1", "*"))
}
