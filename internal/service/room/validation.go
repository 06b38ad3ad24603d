package room

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var RoomNameRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 64),
	validation.Match(regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)),
}

var PlatformRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 32),
}

var SongIdRule = []validation.Rule{
	validation.Required,
}

var DurationRule = []validation.Rule{
	validation.Min(0),
}

var CoverURLRule = []validation.Rule{
	is.URL,
}

var RequestedByRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 64),
}

var ClientIdRule = []validation.Rule{
	validation.Required,
	is.UUIDv4,
}
