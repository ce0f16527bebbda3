// Package params implements the contract-argument codec shared by the host
// and the script runtime.
//
// A List is an ordered sequence of tagged values. Each Value carries a
// TypeTag from a closed set and a slice of string leaves whose shape is fixed
// by the tag:
//   - scalar tags (address, bytes32, uint8, uint64, int64, uint256, string)
//     carry exactly one leaf
//   - array tags (address[], uint64[], uint256[], string[]) carry N leaves
//   - tuple carries one leaf holding the WireForm of a nested List
//   - tuple[] carries N WireForm leaves whose lists share a tag sequence
//
// WIRE FORMAT:
//
// A List renders to a JSON array of {"type": ..., "value": [...]} objects,
// keys always in that order, without HTML escaping. The UTF-8 bytes of that
// array are base64 encoded (standard alphabet, padded) to give the WireForm.
// Every nesting level is wrapped this way, the outermost included:
//   - bytes32 leaves are base64(JSON([b0, b1, ..., b31]))
//   - tuple and tuple[] leaves are complete WireForm strings
//
// Encoding is deterministic: equal lists encode to byte-identical WireForms.
// Lists are built with Builder, which only admits valid (tag, leaf shape)
// combinations, and parsed with Decode, which re-validates everything.
package params
