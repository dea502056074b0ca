// Package tgui builds inline keyboards whose buttons carry raw
// "plugin:action:payload" callback data, the format the router dispatches on.
package tgui
