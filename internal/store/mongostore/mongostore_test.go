package mongostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURIFor(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, "mongodb://localhost:27017", o.URIFor())

	o.Host, o.Port = "10.0.0.5", 27018
	assert.Equal(t, "mongodb://10.0.0.5:27018", o.URIFor())

	o.URI = "mongodb://user:pw@db:27017/?authSource=admin"
	assert.Equal(t, o.URI, o.URIFor())
}
