/*
Package kvservice implements the client-side kv procedure against a NextID
KVService registry.

A Procedure applies one JSON merge patch to the metadata an avatar stores
for a platform identity, following the same challenge / sign / submit flow
as proof procedures but always authorized by the avatar key alone. FindBy*
helpers query existing records.
*/
package kvservice
