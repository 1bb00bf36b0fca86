package reconcile

import (
	"github.com/nanashili/dap-client/internal/jsonvalue"
)

// SetExceptionFilters replaces the desired plain filter list.
func (s *State) SetExceptionFilters(filters []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desiredFilters = append([]string(nil), filters...)
	s.pendingException = true
}

// SetExceptionFilterOptions replaces the desired filter-option list.
func (s *State) SetExceptionFilterOptions(opts []ExceptionFilterOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desiredFilterOptions = append([]ExceptionFilterOption(nil), opts...)
	s.pendingException = true
}

// SetExceptionOptions replaces the desired raw exceptionOptions payload.
func (s *State) SetExceptionOptions(opts []jsonvalue.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desiredExceptionOptions = append([]jsonvalue.Value(nil), opts...)
	s.pendingException = true
}

// FlushExceptions implements spec.md §4.4's exception-breakpoint
// reconciliation: one combined setExceptionBreakpoints request, gated on
// the relevant capabilities when the richer fields are in use.
func (s *State) FlushExceptions(sender RequestSender, hasCapability CapabilityChecker) error {
	s.mu.Lock()
	if !s.pendingException {
		s.mu.Unlock()
		return nil
	}
	s.pendingException = false
	filters := append([]string(nil), s.desiredFilters...)
	filterOptions := append([]ExceptionFilterOption(nil), s.desiredFilterOptions...)
	exceptionOptions := append([]jsonvalue.Value(nil), s.desiredExceptionOptions...)
	s.mu.Unlock()

	if err := s.requireExceptionCapabilities(hasCapability, filterOptions, exceptionOptions); err != nil {
		return err
	}

	fields := map[string]jsonvalue.Value{}
	filterVals := make([]jsonvalue.Value, 0, len(filters))
	for _, f := range filters {
		filterVals = append(filterVals, jsonvalue.String(f))
	}
	fields["filters"] = jsonvalue.Array(filterVals...)
	if len(filterOptions) > 0 {
		vals := make([]jsonvalue.Value, 0, len(filterOptions))
		for _, o := range filterOptions {
			vals = append(vals, o.ToValue())
		}
		fields["filterOptions"] = jsonvalue.Array(vals...)
	}
	if len(exceptionOptions) > 0 {
		fields["exceptionOptions"] = jsonvalue.Array(exceptionOptions...)
	}

	_, err := sender.SendRequest("setExceptionBreakpoints", jsonvalue.Object(fields))
	if err != nil {
		s.mu.Lock()
		s.pendingException = true
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *State) requireExceptionCapabilities(hasCapability CapabilityChecker, filterOptions []ExceptionFilterOption, exceptionOptions []jsonvalue.Value) error {
	if len(filterOptions) > 0 && !hasCapability("supportsExceptionFilterOptions") {
		s.mu.Lock()
		s.pendingException = true
		s.mu.Unlock()
		return unsupportedFeature("adapter does not support exception filter options")
	}
	if len(exceptionOptions) > 0 && !hasCapability("supportsExceptionOptions") {
		s.mu.Lock()
		s.pendingException = true
		s.mu.Unlock()
		return unsupportedFeature("adapter does not support exception options")
	}
	return nil
}
