package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseField_Whitelist(t *testing.T) {
	for _, f := range Fields {
		got, ok := ParseField(f.String())
		assert.True(t, ok, f.String())
		assert.Equal(t, f, got)
	}
}

func TestParseField_CaseSensitive(t *testing.T) {
	for _, name := range []string{"Location", "surname", "Forenames", "", "UserId"} {
		_, ok := ParseField(name)
		assert.False(t, ok, name)
	}
}

func TestField_Kinds(t *testing.T) {
	assert.Equal(t, KindIdentity, FieldUserID.Kind())
	assert.Equal(t, KindScalar, FieldSurname.Kind())
	assert.Equal(t, KindScalar, FieldTitle.Kind())
	assert.Equal(t, KindSequence, FieldForenames.Kind())
	assert.Equal(t, KindPooledSet, FieldPhone.Kind())
	assert.Equal(t, KindPooledSet, FieldEmail.Kind())
	assert.Equal(t, KindReference, FieldPosition.Kind())
	assert.Equal(t, KindReference, FieldLocation.Kind())

	for _, f := range Fields {
		assert.NotEmpty(t, f.Check(), f.String())
	}
}

func TestPerson_Lines(t *testing.T) {
	surname := "Smith"
	loc := "London"
	p := &Person{
		UserID:    "u-1",
		Surname:   &surname,
		Forenames: []string{"Ann", "Marie"},
		Positions: []string{"Lecturer"},
		Phones:    []string{"123", "456"},
		Location:  &loc,
	}

	assert.Equal(t, []string{
		"UserID=u-1",
		"Surname=Smith",
		"Fornames=Ann Marie",
		"Title=",
		"Position=Lecturer",
		"Phone=123, 456",
		"Email=",
		"location=London",
	}, p.Lines())

	_, ok := p.Value(FieldTitle)
	assert.False(t, ok)
}

func TestSplitForenames(t *testing.T) {
	assert.Equal(t, []string{"Ann", "Marie"}, SplitForenames("  Ann   Marie "))
	assert.Empty(t, SplitForenames(""))
}

func TestOperationError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &OperationError{Op: "update", Login: "alice", Check: "comp_user", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, `update "alice" failed (check comp_user): connection refused`, err.Error())
}
