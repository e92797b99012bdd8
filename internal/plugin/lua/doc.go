// Package lua runs user hook scripts with gopher-lua.
//
// A hook script is an ordinary Lua file that may define two global
// functions:
//
//	function on_command(text)
//	    -- strip a trailing semicolon before sending
//	    return (text:gsub(";$", ""))
//	end
//
//	function on_output(chunk)
//	    if chunk:find("^DEBUG") then return "" end
//	end
//
// Scripts run with the base, table, string and math libraries only; io,
// os, package and the code loading functions are not available. Every
// call is bounded by an execution timeout.
package lua
