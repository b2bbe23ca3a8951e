package export

import (
	"strconv"
	"strings"
)

// buildParams assembles the flat parameter mapping for one protocol export.
// Overlays merge left-to-right in increasing override priority: runtime
// facts, application metadata, module metadata, provider defaults,
// protocol settings, the service's own settings, then per-method and
// per-argument overrides.
func (s *Service) buildParams(pc ProtocolOptions) (map[string]string, error) {
	params := map[string]string{SideKey: ProviderSide}

	overlay(params, s.runtimeParams())
	overlay(params, s.opts.Application)
	overlay(params, s.opts.Module)
	if s.opts.Provider != nil {
		overlay(params, s.opts.Provider.Params)
	}
	overlay(params, pc.Params)
	overlay(params, s.opts.Params)

	if s.opts.Scope != "" {
		if _, ok := params[ScopeKey]; !ok {
			params[ScopeKey] = s.opts.Scope
		}
	}

	params[InterfaceKey] = s.descriptor.Name
	if s.opts.Group != "" {
		params[GroupKey] = s.opts.Group
	}
	if s.opts.Version != "" {
		params[VersionKey] = s.opts.Version
	}
	if s.opts.MetadataType != "" {
		if _, ok := params[MetadataKey]; !ok {
			params[MetadataKey] = s.opts.MetadataType
		}
	}

	if err := s.appendMethodParams(params); err != nil {
		return nil, err
	}

	if s.opts.Generic {
		params[GenericKey] = "true"
		params[MethodsKey] = AnyValue
	} else {
		params[RevisionKey] = s.descriptor.Revision()
		names := s.descriptor.WireNames()
		if len(names) == 0 {
			s.deps.Logger.Warn().
				Str("interface", s.descriptor.Name).
				Msg("no methods found on service interface")
			params[MethodsKey] = AnyValue
		} else {
			params[MethodsKey] = strings.Join(names, ",")
		}
	}

	s.appendToken(params)
	return params, nil
}

// appendMethodParams applies method-level and argument-level overrides.
func (s *Service) appendMethodParams(params map[string]string) error {
	for _, m := range s.opts.Methods {
		for k, v := range m.Params {
			params[m.Name+"."+k] = v
		}
		// A method-level retry flag is normalized: retry=false becomes
		// retries=0, other values are dropped.
		retryKey := m.Name + ".retry"
		if v, ok := params[retryKey]; ok {
			delete(params, retryKey)
			if v == "false" {
				params[m.Name+".retries"] = "0"
			}
		}
		for _, arg := range m.Arguments {
			if err := s.appendArgumentParams(params, m, arg); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendArgumentParams validates one argument override against the
// resolved method signature and appends its parameters under
// "<method>.<index>.".
func (s *Service) appendArgumentParams(params map[string]string, m MethodOptions, arg ArgumentOptions) error {
	if arg.Type != "" {
		method, ok := s.descriptor.Method(m.Name)
		if !ok {
			return configErrorf("argument config on unknown method %q", m.Name)
		}
		if idx := arg.Index; idx != nil && *idx >= 0 {
			// Both declared: the type at that index must match exactly.
			if *idx >= len(method.ParamTypes) || method.ParamTypes[*idx].String() != arg.Type {
				return &ArgumentMismatchError{Method: m.Name, Index: *idx, Type: arg.Type}
			}
			appendArgument(params, m.Name, *idx, arg)
			return nil
		}
		// Type only: annotate every parameter position of that type.
		matched := false
		for j, pt := range method.ParamTypes {
			if pt.String() == arg.Type {
				appendArgument(params, m.Name, j, arg)
				matched = true
			}
		}
		if !matched {
			return &ArgumentMismatchError{Method: m.Name, Index: -1, Type: arg.Type}
		}
		return nil
	}
	if idx := arg.Index; idx != nil && *idx >= 0 {
		appendArgument(params, m.Name, *idx, arg)
		return nil
	}
	return &ArgumentIncompleteError{Method: m.Name}
}

func appendArgument(params map[string]string, method string, index int, arg ArgumentOptions) {
	prefix := method + "." + strconv.Itoa(index)
	for k, v := range arg.Params {
		params[prefix+"."+k] = v
	}
	if arg.Callback {
		params[prefix+".callback"] = "true"
	}
}

// appendToken applies the security token policy: inherit the provider
// default when unset, generate a fresh random token for "true"/"default",
// use a literal token verbatim.
func (s *Service) appendToken(params map[string]string) {
	token := s.opts.Token
	if token == "" && s.opts.Provider != nil {
		token = s.opts.Provider.Token
	}
	if token == "" {
		return
	}
	if token == "true" || token == "default" {
		params[TokenKey] = s.deps.IDs.New()
	} else {
		params[TokenKey] = token
	}
}

func overlay(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
