// Package services turns the "services" option into the service name to port
// map the container is published with.
package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultPorts is the per-service port table of the LocalStack images that
// still expose one listener per service.
var DefaultPorts = map[string]int{
	"apigateway":      4567,
	"kinesis":         4568,
	"dynamodb":        4569,
	"dynamodbstreams": 4570,
	"elasticsearch":   4571,
	"s3":              4572,
	"firehose":        4573,
	"lambda":          4574,
	"sns":             4575,
	"sqs":             4576,
	"redshift":        4577,
	"es":              4578,
	"ses":             4579,
	"route53":         4580,
	"cloudformation":  4581,
	"cloudwatch":      4582,
	"ssm":             4583,
	"secretsmanager":  4584,
	"stepfunctions":   4585,
	"logs":            4586,
	"events":          4587,
	"sts":             4592,
	"iam":             4593,
	"ec2":             4597,
	"kms":             4599,
}

// Map is a service name to TCP port mapping. Built once, read-only afterwards.
type Map map[string]int

// Names returns the service names in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Port returns the port of a service and whether the service is active.
func (m Map) Port(name string) (int, bool) {
	port, ok := m[name]
	return port, ok
}

// Token is one entry of a services list, e.g. "kinesis" or "kinesis:4568".
type Token struct {
	Name string
	Port int // 0 when no explicit port was given
}

func (t Token) String() string {
	if t.Port == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s:%d", t.Name, t.Port)
}

// Build normalizes a services specification. A nil or empty spec yields the
// default table. Names without an explicit port that are missing from the
// default table are left out of the map.
func Build(spec any) (Map, error) {
	tokens, err := Parse(spec)
	if err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		m := make(Map, len(DefaultPorts))
		for name, port := range DefaultPorts {
			m[name] = port
		}
		return m, nil
	}

	m := make(Map, len(tokens))
	for _, tok := range tokens {
		port := tok.Port
		if port == 0 {
			port = DefaultPorts[tok.Name]
		}
		if port == 0 {
			continue
		}
		m[tok.Name] = port
	}
	return m, nil
}

// Parse splits a services specification into tokens. It accepts nil, a
// comma separated string, a []string or a []any holding strings.
func Parse(spec any) ([]Token, error) {
	var raw []string

	switch v := spec.(type) {
	case nil:
		return nil, nil
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("services[%d]: expected a string, got %T", i, item)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("services: unsupported type %T", spec)
	}

	tokens := make([]Token, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, portStr, hasPort := strings.Cut(entry, ":")
		tok := Token{Name: strings.ToLower(strings.TrimSpace(name))}
		if tok.Name == "" {
			return nil, fmt.Errorf("services: empty service name in %q", entry)
		}

		if hasPort {
			port, err := strconv.Atoi(strings.TrimSpace(portStr))
			if err != nil || port <= 0 || port > 65535 {
				return nil, fmt.Errorf("services: invalid port in %q", entry)
			}
			tok.Port = port
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// EnvValue renders the SERVICES variable understood by LocalStack. It is
// empty when the spec does not request any service explicitly. Services
// without a known port are still passed on, LocalStack may know them even
// though no port is published for them.
func EnvValue(spec any) (string, error) {
	tokens, err := Parse(spec)
	if err != nil {
		return "", err
	}

	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.String()
	}
	return strings.Join(parts, ","), nil
}
