/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package console

import "github.com/chzyer/readline"

// NewCompleter returns the tab completer for console commands.
func NewCompleter() *readline.PrefixCompleter {
	tools := []readline.PrefixCompleterInterface{
		readline.PcItem("none"),
		readline.PcItem("distance"),
		readline.PcItem("angle"),
		readline.PcItem("area"),
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("tool", tools...),
		readline.PcItem("click"),
		readline.PcItem("down"),
		readline.PcItem("up"),
		readline.PcItem("move"),
		readline.PcItem("drag"),
		readline.PcItem("wheel"),
		readline.PcItem("zoom"),
		readline.PcItem("pan"),
		readline.PcItem("reset"),
		readline.PcItem("back"),
		readline.PcItem("forward"),
		readline.PcItem("resize"),
		readline.PcItem("annotations"),
		readline.PcItem("loupe"),
		readline.PcItem("popups"),
		readline.PcItem("close"),
		readline.PcItem("cancel"),
		readline.PcItem("results"),
		readline.PcItem("scale"),
		readline.PcItem("state"),
		readline.PcItem("export"),
		readline.PcItem("quit"),
	)
}
