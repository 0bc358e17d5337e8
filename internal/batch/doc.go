// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package batch implements the batched pagination engine: a keyed set of
// independent pagination cursors multiplexed through shared GraphQL wire
// requests.
//
// Each paginated resource instance (an owner's repository list, a
// repository's issue list, an issue's label list) gets one cursor. A run
// repeatedly assembles up to batch-size non-exhausted cursors into a
// single request, demultiplexes the per-alias responses back onto the
// originating cursors, and advances or retires each. Pages of a single
// resource are applied strictly in server order through token chaining;
// no ordering holds across resources, and none is needed downstream.
package batch
