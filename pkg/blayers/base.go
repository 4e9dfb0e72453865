// Copyright 2025 The OpenBACnet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blayers

// BaseLayer is a convenience struct which implements the LayerData and
// LayerPayload functions of the Layer interface. It is the same as
// gopacket/layers.BaseLayer; redefined here so that blayers does not link in
// every layer of the gopacket/layers package.
type BaseLayer struct {
	// Contents is the set of bytes that make up this layer.
	Contents []byte
	// Payload is the set of bytes contained by (but not part of) this layer.
	Payload []byte
}

// LayerContents returns the bytes of the packet layer.
func (b *BaseLayer) LayerContents() []byte { return b.Contents }

// LayerPayload returns the bytes contained by the packet layer.
func (b *BaseLayer) LayerPayload() []byte { return b.Payload }
