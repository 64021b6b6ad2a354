// internal/game/items.go
package game

import (
	"math/rand"
	"time"
)

// ItemID identifies a catalog entry. Timed effects are keyed by the ItemID that created them.
type ItemID string

const (
	ItemLetterReveal    ItemID = "letter_reveal"
	ItemLetterSnipe     ItemID = "letter_snipe"
	ItemTimeBonus       ItemID = "time_bonus"
	ItemShield          ItemID = "shield"
	ItemMirrorShield    ItemID = "mirror_shield"
	ItemBlindfold       ItemID = "blindfold"
	ItemKeyboardShuffle ItemID = "keyboard_shuffle"
	ItemFreeze          ItemID = "freeze"
	ItemAmnesia         ItemID = "amnesia"
)

// Category separates self-targeted items from attacks.
type Category string

const (
	CategoryPowerUp  Category = "powerup"
	CategorySabotage Category = "sabotage"
)

// Rarity drives drop weighting.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

var rarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityLegendary}

// Item is a catalog entry.
type Item struct {
	ID          ItemID        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Category    Category      `json:"category"`
	Rarity      Rarity        `json:"rarity"`
	Duration    time.Duration `json:"-"`
	// Reflectable sabotages bounce off a mirror shield; the rest are only blocked by it.
	Reflectable bool `json:"reflectable,omitempty"`
}

const timeBonusAmount = 30 * time.Second

var catalog = []Item{
	{ID: ItemLetterReveal, Name: "Letter Reveal", Description: "Reveal one letter of the word.", Category: CategoryPowerUp, Rarity: RarityCommon},
	{ID: ItemLetterSnipe, Name: "Letter Snipe", Description: "Check whether a letter is in the word.", Category: CategoryPowerUp, Rarity: RarityCommon},
	{ID: ItemTimeBonus, Name: "Time Bonus", Description: "Gain 30 extra seconds.", Category: CategoryPowerUp, Rarity: RarityUncommon},
	{ID: ItemShield, Name: "Shield", Description: "Block the next sabotage.", Category: CategoryPowerUp, Rarity: RarityUncommon, Duration: 60 * time.Second},
	{ID: ItemMirrorShield, Name: "Mirror Shield", Description: "Reflect the next sabotage back.", Category: CategoryPowerUp, Rarity: RarityRare, Duration: 60 * time.Second},
	{ID: ItemBlindfold, Name: "Blindfold", Description: "Hide a player's colors.", Category: CategorySabotage, Rarity: RarityCommon, Duration: 15 * time.Second, Reflectable: true},
	{ID: ItemKeyboardShuffle, Name: "Keyboard Shuffle", Description: "Scramble a player's keyboard.", Category: CategorySabotage, Rarity: RarityUncommon, Duration: 20 * time.Second, Reflectable: true},
	{ID: ItemFreeze, Name: "Freeze", Description: "Stop a player from guessing.", Category: CategorySabotage, Rarity: RarityRare, Duration: 8 * time.Second, Reflectable: true},
	{ID: ItemAmnesia, Name: "Amnesia", Description: "Wipe a player's keyboard hints.", Category: CategorySabotage, Rarity: RarityLegendary},
}

var catalogByID = func() map[ItemID]Item {
	m := make(map[ItemID]Item, len(catalog))
	for _, it := range catalog {
		m[it.ID] = it
	}
	return m
}()

// LookupItem returns the catalog entry for id.
func LookupItem(id ItemID) (Item, bool) {
	it, ok := catalogByID[id]
	return it, ok
}

// Catalog returns every item in display order.
func Catalog() []Item {
	return append([]Item(nil), catalog...)
}

// standingTier buckets a player's position for rarity weighting.
type standingTier int

const (
	tierLeader standingTier = iota
	tierMiddle
	tierTrailing
)

// rarityWeights[tier] lists weights for common, uncommon, rare, legendary.
var rarityWeights = map[standingTier][4]int{
	tierLeader:   {60, 30, 9, 1},
	tierMiddle:   {45, 35, 15, 5},
	tierTrailing: {25, 35, 28, 12},
}

func tierFor(standing int, lowRank bool) standingTier {
	switch {
	case lowRank:
		return tierTrailing
	case standing == 1:
		return tierLeader
	default:
		return tierMiddle
	}
}

func rollRarity(rng *rand.Rand, tier standingTier) Rarity {
	weights := rarityWeights[tier]
	total := 0
	for _, w := range weights {
		total += w
	}
	n := rng.Intn(total)
	for i, w := range weights {
		if n < w {
			return rarities[i]
		}
		n -= w
	}
	return RarityCommon
}

// rollItem picks a rarity by tier, then an item uniformly within that rarity.
func rollItem(rng *rand.Rand, tier standingTier) ItemID {
	rarity := rollRarity(rng, tier)
	var pool []ItemID
	for _, it := range catalog {
		if it.Rarity == rarity {
			pool = append(pool, it.ID)
		}
	}
	if len(pool) == 0 {
		return ItemLetterReveal
	}
	return pool[rng.Intn(len(pool))]
}
