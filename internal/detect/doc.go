// Package detect implements the multi-pass PII detection pipeline: a
// deterministic pattern pass, two generative-model passes, retrospective
// occurrence and variation expansion, an optional semantic-index pass, and
// the interval merge that reconciles them into one disjoint entity set.
package detect
