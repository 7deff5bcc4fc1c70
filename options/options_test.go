package options

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type target struct {
	name  string
	count int
}

type nameOpt struct{ name string }

func (o *nameOpt) Apply(t *target)    { t.name = o.name }
func (o *nameOpt) OptionName() string { return "name" }

type countOpt struct{ count int }

func (o *countOpt) Apply(t *target)    { t.count = o.count }
func (o *countOpt) OptionName() string { return "count" }

type optionsSuite struct {
	suite.Suite
}

func (s *optionsSuite) TestApplyOptions() {
	tgt := &target{}
	ApplyOptions(tgt, &nameOpt{name: "batch"}, &countOpt{count: 3})
	s.Equal("batch", tgt.name, "first option applied")
	s.Equal(3, tgt.count, "second option applied")
}

func (s *optionsSuite) TestApplyOptionsSkipsNil() {
	tgt := &target{name: "keep"}
	ApplyOptions(tgt, nil, &countOpt{count: 1})
	s.Equal("keep", tgt.name, "nil option is skipped")
	s.Equal(1, tgt.count, "non-nil option still applied")
}

func (s *optionsSuite) TestApplyOptionsEmpty() {
	tgt := &target{name: "untouched"}
	ApplyOptions(tgt)
	s.Equal("untouched", tgt.name, "no options leaves target untouched")
}

func TestOptions(t *testing.T) {
	suite.Run(t, new(optionsSuite))
}
