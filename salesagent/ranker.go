// Copyright 2025 AdMesh
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package salesagent

import (
	"sort"
	"strings"
)

// RankedProduct is one scored product with the ranker's rationale
type RankedProduct struct {
	ProductID string
	Reason    string
	Score     float64
}

// Ranker orders a tenant's products against a buyer brief. Implementations
// must be deterministic for a given brief and product list so repeated
// fan-outs produce stable results.
type Ranker interface {
	Rank(brief string, products []Product) []RankedProduct
}

// KeywordRanker scores products by token overlap between the brief and the
// product's name, description, and keywords. It is the default Ranker; an
// AI-provider implementation can replace it behind the same interface.
type KeywordRanker struct{}

// NewKeywordRanker creates the default keyword-overlap ranker
func NewKeywordRanker() *KeywordRanker {
	return &KeywordRanker{}
}

// Rank scores every product and returns them sorted by score descending,
// product id ascending on ties. Products with zero overlap still appear,
// scored 0, so small catalogs always return something the buyer can see.
func (r *KeywordRanker) Rank(brief string, products []Product) []RankedProduct {
	briefTokens := tokenize(brief)

	ranked := make([]RankedProduct, 0, len(products))
	for _, product := range products {
		score, matched := scoreProduct(briefTokens, product)
		ranked = append(ranked, RankedProduct{
			ProductID: product.ID,
			Reason:    buildReason(product, matched),
			Score:     score,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})
	return ranked
}

// scoreProduct counts brief tokens present in the product's text fields.
// Keyword hits weigh double: an explicit keyword is a stronger signal than a
// word appearing somewhere in the description.
func scoreProduct(briefTokens []string, product Product) (float64, []string) {
	nameTokens := tokenSet(tokenize(product.Name))
	descTokens := tokenSet(tokenize(product.Description))
	keywordTokens := make(map[string]bool)
	for _, keyword := range product.Keywords {
		for _, token := range tokenize(keyword) {
			keywordTokens[token] = true
		}
	}

	var score float64
	var matched []string
	seen := make(map[string]bool)
	for _, token := range briefTokens {
		if seen[token] {
			continue
		}
		seen[token] = true

		hit := false
		if keywordTokens[token] {
			score += 2
			hit = true
		}
		if nameTokens[token] || descTokens[token] {
			score++
			hit = true
		}
		if hit {
			matched = append(matched, token)
		}
	}
	return score, matched
}

func buildReason(product Product, matched []string) string {
	if len(matched) == 0 {
		return "No direct brief match for " + product.Name
	}
	return product.Name + " matches brief terms: " + strings.Join(matched, ", ")
}

// tokenize lowercases and splits text on non-alphanumeric runes
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		set[token] = true
	}
	return set
}
