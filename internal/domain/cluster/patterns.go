package cluster

import (
	"context"
	"sort"

	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
)

// AttributeGroup is a set of cluster terms sharing one value of one
// categorical attribute key, optionally enriched with a natural-language
// description of the pattern.
type AttributeGroup struct {
	Key         string   `json:"key"`
	Value       string   `json:"value"`
	Terms       []string `json:"terms"`
	Description string   `json:"description,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// AttributeRelation groups terms that carry specific values for two
// attribute keys simultaneously — an AND join over the two partitions.
type AttributeRelation struct {
	KeyA   string   `json:"keyA"`
	ValueA string   `json:"valueA"`
	KeyB   string   `json:"keyB"`
	ValueB string   `json:"valueB"`
	Terms  []string `json:"terms"`
}

// PatternDescriber produces a human-readable description and confidence for
// an attribute group. Implementations are expected to call an external
// language model; failures degrade the group rather than abort analysis.
type PatternDescriber interface {
	DescribeGroup(ctx context.Context, clusterTerms []string, group AttributeGroup) (description string, confidence float64, err error)
}

// PatternAnalyzer partitions a cluster's terms by their categorical
// attributes and derives pairwise co-occurrence relations.
type PatternAnalyzer struct {
	describer PatternDescriber
	logger    logging.Logger
}

// NewPatternAnalyzer constructs a PatternAnalyzer. The describer may be nil,
// in which case groups are returned without descriptions.
func NewPatternAnalyzer(describer PatternDescriber, logger logging.Logger) *PatternAnalyzer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PatternAnalyzer{describer: describer, logger: logger}
}

// Analyze partitions c's terms per attribute key and computes pairwise
// relations. Every term carrying a key appears in exactly one of that key's
// groups; terms lacking the key are excluded from its partition. Output
// order is deterministic: keys and values ascending, relations by key pair
// then value pair.
func (a *PatternAnalyzer) Analyze(ctx context.Context, c *Cluster) ([]AttributeGroup, []AttributeRelation) {
	groups := a.groupByAttribute(c)
	relations := relateAttributes(c)

	if a.describer != nil {
		texts := c.TermTexts()
		for i := range groups {
			desc, conf, err := a.describer.DescribeGroup(ctx, texts, groups[i])
			if err != nil {
				// Degrade: keep the grouping, drop the enrichment.
				a.logger.Warn("pattern description failed",
					logging.Int("cluster_id", c.ID),
					logging.String("key", groups[i].Key),
					logging.String("value", groups[i].Value),
					logging.Err(err))
				continue
			}
			groups[i].Description = desc
			groups[i].Confidence = conf
		}
	}
	return groups, relations
}

func (a *PatternAnalyzer) groupByAttribute(c *Cluster) []AttributeGroup {
	// key → value → terms
	byKey := make(map[string]map[string][]string)
	for _, rec := range c.Terms {
		for key, value := range rec.Attributes {
			if value == "" {
				continue
			}
			if byKey[key] == nil {
				byKey[key] = make(map[string][]string)
			}
			byKey[key][value] = append(byKey[key][value], rec.Term)
		}
	}

	keys := sortedKeys(byKey)
	var groups []AttributeGroup
	for _, key := range keys {
		values := make([]string, 0, len(byKey[key]))
		for v := range byKey[key] {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, value := range values {
			groups = append(groups, AttributeGroup{
				Key:   key,
				Value: value,
				Terms: byKey[key][value],
			})
		}
	}
	return groups
}

// relateAttributes joins every pair of attribute keys: a term contributes to
// a relation only when it carries values for both keys.
func relateAttributes(c *Cluster) []AttributeRelation {
	keySet := make(map[string]struct{})
	for _, rec := range c.Terms {
		for key, value := range rec.Attributes {
			if value != "" {
				keySet[key] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var relations []AttributeRelation
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			relations = append(relations, relatePair(c, keys[i], keys[j])...)
		}
	}
	return relations
}

func relatePair(c *Cluster, keyA, keyB string) []AttributeRelation {
	type pair struct{ a, b string }
	byPair := make(map[pair][]string)
	for _, rec := range c.Terms {
		va, okA := rec.Attributes[keyA]
		vb, okB := rec.Attributes[keyB]
		if !okA || !okB || va == "" || vb == "" {
			continue
		}
		p := pair{va, vb}
		byPair[p] = append(byPair[p], rec.Term)
	}

	pairs := make([]pair, 0, len(byPair))
	for p := range byPair {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	relations := make([]AttributeRelation, 0, len(pairs))
	for _, p := range pairs {
		relations = append(relations, AttributeRelation{
			KeyA:   keyA,
			ValueA: p.a,
			KeyB:   keyB,
			ValueB: p.b,
			Terms:  byPair[p],
		})
	}
	return relations
}

func sortedKeys(m map[string]map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
