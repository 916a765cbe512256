package rest

// Aliases for the external test package; handler_test.go lives in rest_test
// to break the rest -> app -> rest test import cycle.
type StepView = stepView

var RequestLanguage = requestLanguage
