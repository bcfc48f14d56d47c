// Package classify derives per-field match/mismatch probabilities from schema
// metadata for Fellegi-Sunter style record linkage.
//
// For every field, M is the probability that the field agrees when two
// records describe the same entity, and U is the probability that it agrees
// by chance when they describe different entities. The log-likelihood ratio
// log2(M/U) is the evidence an agreeing field contributes to a match score,
// and log2((1-M)/(1-U)) the (negative) evidence of a disagreeing one.
package classify

import (
	"math"

	"github.com/agentstation/entsync/pkg/fieldset"
	"github.com/agentstation/entsync/pkg/schema"
)

// Classification is the probabilistic profile of one field.
type Classification struct {
	M float64 `json:"m" yaml:"m"` // P(agree | same entity)
	U float64 `json:"u" yaml:"u"` // P(agree | different entities)
}

// Neutral carries no evidence either way.
var Neutral = Classification{M: 0.5, U: 0.5}

// AgreeWeight is the evidence contributed by full agreement.
func (c Classification) AgreeWeight() float64 {
	return math.Log2(c.M / c.U)
}

// DisagreeWeight is the evidence contributed by full disagreement.
func (c Classification) DisagreeWeight() float64 {
	return math.Log2((1 - c.M) / (1 - c.U))
}

// Weight interpolates evidence for a similarity in [0,1].
func (c Classification) Weight(similarity float64) float64 {
	return similarity*c.AgreeWeight() + (1-similarity)*c.DisagreeWeight()
}

// Classifications maps field keys to their profiles. It is read-only after
// construction and safe for concurrent use.
type Classifications map[string]Classification

// Baseline unrelated-match probabilities by data type.
var baselineU = map[schema.DataType]float64{
	schema.DataTypeBoolean:   0.5,
	schema.DataTypePlaintext: 1e-4,
	schema.DataTypeRichtext:  1e-5,
	schema.DataTypeInteger:   1e-3,
	schema.DataTypeDecimal:   1e-3,
	schema.DataTypeDate:      3e-3,
	schema.DataTypeDatetime:  1e-4,
	schema.DataTypeRelation:  0.05,
	schema.DataTypeUID:       1e-4,
	schema.DataTypeSeqID:     1e-4,
	schema.DataTypeOption:    0.1,
	schema.DataTypePeriod:    1e-3,
}

// Text u by granularity: coarser units collide less often by chance.
var alphabetU = map[schema.Alphabet]float64{
	schema.AlphabetToken:     1e-2,
	schema.AlphabetWord:      1e-3,
	schema.AlphabetLine:      1e-4,
	schema.AlphabetParagraph: 1e-5,
	schema.AlphabetDocument:  1e-6,
}

// Classify builds the classification map for every non-identifier field of s.
func Classify(s *schema.Schema) Classifications {
	out := Classifications{}
	if s == nil {
		return out
	}
	for _, key := range s.FieldKeys() {
		if fieldset.IsIdentityKey(key) {
			continue
		}
		def, _ := s.Field(key)
		out[key] = Field(key, def)
	}
	return out
}

// Field classifies a single field definition.
func Field(key string, def schema.FieldDef) Classification {
	if len(def.Options) == 1 {
		return Neutral
	}
	m := matchProbability(def)
	u := unrelatedProbability(key, def)
	if u >= m {
		u = m / 2
	}
	return Classification{M: m, U: u}
}

func matchProbability(def schema.FieldDef) float64 {
	switch {
	case def.Immutable || def.Unique:
		return 0.99
	case def.DataType == schema.DataTypeBoolean:
		return 0.7
	case def.DataType == schema.DataTypeDate || def.DataType == schema.DataTypeDatetime:
		return 0.9
	case def.HasOptions():
		return 0.7
	}
	return 0.8
}

func unrelatedProbability(key string, def schema.FieldDef) float64 {
	u := baselineU[def.DataType]
	if def.DataType.IsText() {
		if refined, ok := alphabetU[def.Alphabet]; ok {
			u = refined
		}
	}
	if key == fieldset.KeyType || def.HasOptions() {
		if n := len(def.Options); n > 0 {
			u = 1 / float64(n)
		}
	}
	if def.Unique {
		u *= 0.01
	}
	if def.AllowMultiple {
		u *= 2
	}
	if def.IsRelation() {
		switch n := len(def.Range); {
		case n == 1:
			u *= 0.5
		case n >= 3:
			u *= 1.5
		}
	}
	return u
}
