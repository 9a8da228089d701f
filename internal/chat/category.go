// Package chat holds the types shared by every stage of chat dispatch: message
// categories, languages, the player view exposed by the world, inbound events,
// outbound messages and the rejection taxonomy.
package chat

import "fmt"

// Category is the chat message type carried by an inbound event and by every
// delivered message. Values match the client's wire ids.
type Category uint8

const (
	CategorySystem             Category = 0x00
	CategorySay                Category = 0x01
	CategoryParty              Category = 0x02
	CategoryRaid               Category = 0x03
	CategoryGuild              Category = 0x04
	CategoryOfficer            Category = 0x05
	CategoryYell               Category = 0x06
	CategoryWhisper            Category = 0x07
	CategoryWhisperInform      Category = 0x09
	CategoryEmote              Category = 0x0A
	CategoryTextEmote          Category = 0x0B
	CategoryChannel            Category = 0x11
	CategoryAfk                Category = 0x17
	CategoryDnd                Category = 0x18
	CategoryIgnored            Category = 0x19
	CategoryRaidLeader         Category = 0x27
	CategoryRaidWarning        Category = 0x28
	CategoryBattleground       Category = 0x2C
	CategoryBattlegroundLeader Category = 0x2D
	CategoryPartyLeader        Category = 0x33

	// MaxCategory is one past the highest id the client may send.
	MaxCategory Category = 0x34
)

var categoryNames = map[Category]string{
	CategorySystem:             "system",
	CategorySay:                "say",
	CategoryParty:              "party",
	CategoryRaid:               "raid",
	CategoryGuild:              "guild",
	CategoryOfficer:            "officer",
	CategoryYell:               "yell",
	CategoryWhisper:            "whisper",
	CategoryWhisperInform:      "whisper_inform",
	CategoryEmote:              "emote",
	CategoryTextEmote:          "text_emote",
	CategoryChannel:            "channel",
	CategoryAfk:                "afk",
	CategoryDnd:                "dnd",
	CategoryIgnored:            "ignored",
	CategoryRaidLeader:         "raid_leader",
	CategoryRaidWarning:        "raid_warning",
	CategoryBattleground:       "battleground",
	CategoryBattlegroundLeader: "battleground_leader",
	CategoryPartyLeader:        "party_leader",
}

// String returns a stable lowercase name, used as a metric label.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category_%#02x", uint8(c))
}

// IsValid reports whether c is below MaxCategory.
func (c Category) IsValid() bool {
	return c < MaxCategory
}

// IsInbound reports whether a client may originate a message of this
// category through the chat event path.
func (c Category) IsInbound() bool {
	switch c {
	case CategorySay, CategoryYell, CategoryEmote, CategoryWhisper,
		CategoryParty, CategoryPartyLeader,
		CategoryGuild, CategoryOfficer,
		CategoryRaid, CategoryRaidLeader, CategoryRaidWarning,
		CategoryBattleground, CategoryBattlegroundLeader,
		CategoryChannel, CategoryAfk, CategoryDnd:
		return true
	}
	return false
}

// IsAutoReply reports whether c is one of the two auto-reply toggles.
func (c Category) IsAutoReply() bool {
	return c == CategoryAfk || c == CategoryDnd
}

// IsGroup reports whether c is delivered to a party or raid audience, the
// categories covered by the cross-faction group override.
func (c Category) IsGroup() bool {
	switch c {
	case CategoryParty, CategoryPartyLeader, CategoryRaid, CategoryRaidLeader, CategoryRaidWarning:
		return true
	}
	return false
}

// IsGuild reports whether c is a guild or officer message.
func (c Category) IsGuild() bool {
	return c == CategoryGuild || c == CategoryOfficer
}

// AcceptsAddon reports whether the reserved addon language may travel on c.
func (c Category) AcceptsAddon() bool {
	switch c {
	case CategoryParty, CategoryRaid, CategoryGuild, CategoryBattleground, CategoryWhisper:
		return true
	}
	return false
}
