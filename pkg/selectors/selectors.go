package selectors

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Selector describes criteria for finding the root VPC.
type Selector struct {
	Tags map[string]string
	ID   string
}

// ParseSelectors parses a string of selectors into a slice of Selector structs.
// Selectors are parsed as a set of terms. Each term is separated by a semicolon.
// Within a term, individual selection criteria is separated by a comma.
// Criteria within a term are AND'd together and terms are OR'd together.
//
// Example:
//
// "tag:Name=workshop,tag:Environment=dev;id:vpc-0123456"
//
// This will parse into two selectors:
//  1. tag:Name=workshop,tag:Environment=dev (the VPC must have both tags)
//  2. id:vpc-0123456 (the VPC must have the given ID)
func ParseSelectors(selectors string) ([]Selector, error) {
	selectors = strings.TrimSpace(selectors)
	var parsedSelectors []Selector
	for _, term := range strings.Split(selectors, ";") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		selector := Selector{
			Tags: make(map[string]string),
		}
		for _, s := range strings.Split(term, ",") {
			switch {
			case strings.HasPrefix(strings.ToLower(s), "tag:"):
				tokens := strings.Split(s, ":")
				if len(tokens) != 2 {
					return nil, fmt.Errorf("invalid tag selector: %s. Expected 1 \":\", but found %d", s, len(tokens)-1)
				}
				tagTokens := strings.Split(tokens[1], "=")
				if len(tagTokens) > 2 {
					return nil, fmt.Errorf("invalid tag selector: %s. Expected 0 or 1 \"=\", but found %d", tokens[1], len(tagTokens)-1)
				}
				// a bare tag key selects on key presence with any value
				if len(tagTokens) == 1 {
					selector.Tags[tagTokens[0]] = ""
				}
				if len(tagTokens) == 2 {
					selector.Tags[tagTokens[0]] = tagTokens[1]
				}
			case strings.HasPrefix(strings.ToLower(s), "id:"):
				tokens := strings.Split(s, ":")
				if len(tokens) != 2 {
					return nil, fmt.Errorf("invalid id selector: %s. Expected 1 \":\", but found %d", s, len(tokens)-1)
				}
				selector.ID = tokens[1]
			default:
				return nil, fmt.Errorf("invalid selector criteria: %s", s)
			}
		}
		parsedSelectors = append(parsedSelectors, selector)
	}
	return parsedSelectors, nil
}

// TagsToEC2Filters converts a tag map into EC2 describe filters.
// An empty or wildcard value matches on tag-key presence alone.
func TagsToEC2Filters(tags map[string]string) []ec2types.Filter {
	var filters []ec2types.Filter
	for k, v := range tags {
		if v == "*" || v == "" {
			filters = append(filters, ec2types.Filter{
				Name:   aws.String("tag-key"),
				Values: []string{k},
			})
		} else {
			filters = append(filters, ec2types.Filter{
				Name:   aws.String(fmt.Sprintf("tag:%s", k)),
				Values: []string{v},
			})
		}
	}
	return filters
}
