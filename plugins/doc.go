// Package plugins hosts the built-in dashboard plugins. Plugins depend only
// on the public contracts under pkg/.
//
// plugins/testhelper is the exception: it builds engines from inline CSV for
// plugin tests and may import internal/. Only _test.go files use it.
package plugins
